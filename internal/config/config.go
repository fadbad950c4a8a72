package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"blockwatch/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required (use -config or -c)")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvironmentOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

var (
	EnvLogLevel         = "BLOCKWATCH_LOG_LEVEL"
	EnvAPITokenDigest   = "BLOCKWATCH_API_TOKEN_DIGEST"
	EnvFirewallBackend  = "BLOCKWATCH_FIREWALL_BACKEND"
	EnvRouterAPIKey     = "BLOCKWATCH_ROUTER_API_KEY"
	EnvRouterAPISecret  = "BLOCKWATCH_ROUTER_API_SECRET"
	EnvStoreType        = "BLOCKWATCH_STORE_TYPE"
	EnvRedisAddress     = "BLOCKWATCH_REDIS_ADDRESS"
	EnvRedisUsername    = "BLOCKWATCH_REDIS_USERNAME"
	EnvRedisPassword    = "BLOCKWATCH_REDIS_PASSWORD"
	EnvPostgresHost     = "BLOCKWATCH_POSTGRES_HOST"
	EnvPostgresPort     = "BLOCKWATCH_POSTGRES_PORT"
	EnvPostgresUsername = "BLOCKWATCH_POSTGRES_USERNAME"
	EnvPostgresPassword = "BLOCKWATCH_POSTGRES_PASSWORD"
	EnvPostgresDatabase = "BLOCKWATCH_POSTGRES_DATABASE"
)

func applyEnvironmentOverrides(config *Config) {
	if level := os.Getenv(EnvLogLevel); level != "" {
		config.Log.Level = level
	}

	if digest := os.Getenv(EnvAPITokenDigest); digest != "" {
		config.API.TokenDigest = digest
	}

	if backend := os.Getenv(EnvFirewallBackend); backend != "" {
		config.Firewall.Backend = backend
	}

	if key := os.Getenv(EnvRouterAPIKey); key != "" {
		if config.Firewall.OPNsense == nil {
			config.Firewall.OPNsense = &OPNsenseConfig{}
		}
		config.Firewall.OPNsense.RouterAPIKey = key
	}

	if secret := os.Getenv(EnvRouterAPISecret); secret != "" {
		if config.Firewall.OPNsense == nil {
			config.Firewall.OPNsense = &OPNsenseConfig{}
		}
		config.Firewall.OPNsense.RouterAPISecret = secret
	}

	if storeType := os.Getenv(EnvStoreType); storeType != "" {
		config.Store.Type = storeType
	}

	if address := os.Getenv(EnvRedisAddress); address != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		config.Redis.Address = address
	}

	if username := os.Getenv(EnvRedisUsername); username != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		config.Redis.Username = username
	}

	if password := os.Getenv(EnvRedisPassword); password != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		config.Redis.Password = password
	}

	if host := os.Getenv(EnvPostgresHost); host != "" {
		if config.Postgres == nil {
			config.Postgres = &PostgresConfig{}
		}
		config.Postgres.Host = host
	}

	if portStr := os.Getenv(EnvPostgresPort); portStr != "" {
		if config.Postgres == nil {
			config.Postgres = &PostgresConfig{}
		}
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Postgres.Port = port
		}
	}

	if username := os.Getenv(EnvPostgresUsername); username != "" {
		if config.Postgres == nil {
			config.Postgres = &PostgresConfig{}
		}
		config.Postgres.Username = username
	}

	if password := os.Getenv(EnvPostgresPassword); password != "" {
		if config.Postgres == nil {
			config.Postgres = &PostgresConfig{}
		}
		config.Postgres.Password = password
	}

	if database := os.Getenv(EnvPostgresDatabase); database != "" {
		if config.Postgres == nil {
			config.Postgres = &PostgresConfig{}
		}
		config.Postgres.Database = database
	}
}

func validateConfig(config *Config) error {
	validators := []func() error{
		config.validateServerConfig,
		config.validateLogConfig,
		config.validateCORSConfig,
		config.validateFirewallConfig,
		config.validateBlockingConfig,
		config.validateStoreConfig,
		config.validateResolverConfig,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerConfig.Port
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.Debug != nil && c.Server.Debug.Enabled {
		if c.Server.Debug.Host == "" {
			c.Server.Debug.Host = DefaultDebugConfig.Host
		}
		if c.Server.Debug.Port <= 0 || c.Server.Debug.Port >= 65535 {
			c.Server.Debug.Port = DefaultDebugConfig.Port
		}
	}

	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}

	return nil
}

// TrustedProxyPrefixes parses Server.TrustedProxies. Bare addresses become
// single-address prefixes.
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid server.trusted_proxies entry %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid server.trusted_proxies entry %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func (c *Config) validateLogConfig() error {
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogConfig.Format
	} else if !utils.IsStringInSliceFold(c.Log.Format, validLogFormats) {
		return fmt.Errorf("invalid log format: %s, options are %s", c.Log.Format, utils.StringJoinOr(validLogFormats))
	}
	c.Log.Format = strings.ToLower(c.Log.Format)

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogConfig.Level
	} else if !utils.IsStringInSliceFold(c.Log.Level, validLogLevels) {
		return fmt.Errorf("invalid log level: %s, options are %s", c.Log.Level, utils.StringJoinOr(validLogLevels))
	}
	c.Log.Level = strings.ToLower(c.Log.Level)

	return nil
}

func (c *Config) validateCORSConfig() error {
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = DefaultCORSConfig.AllowedOrigins
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = DefaultCORSConfig.AllowedMethods
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = DefaultCORSConfig.AllowedHeaders
	}
	if c.CORS.MaxAgeSeconds == 0 {
		c.CORS.MaxAgeSeconds = DefaultCORSConfig.MaxAgeSeconds
	}

	return nil
}

func (c *Config) validateFirewallConfig() error {
	if c.Firewall.Backend == "" {
		c.Firewall.Backend = DefaultFirewallConfig.Backend
	}

	if c.Firewall.CommandTimeout == 0 {
		c.Firewall.CommandTimeout = DefaultFirewallConfig.CommandTimeout
	} else if c.Firewall.CommandTimeout < 0 {
		return fmt.Errorf("firewall.command_timeout must be positive")
	}

	switch c.Firewall.Backend {
	case "memory":
		return nil
	case "opnsense":
		return c.validateOPNsenseConfig()
	case "iptables":
	default:
		return fmt.Errorf("invalid firewall backend: %s, must be %s", c.Firewall.Backend, utils.StringJoinOr(validFirewallBackends))
	}

	if c.Firewall.IPTablesPath == "" {
		c.Firewall.IPTablesPath = DefaultFirewallConfig.IPTablesPath
	}

	if c.Firewall.IP6TablesPath == "" {
		c.Firewall.IP6TablesPath = DefaultFirewallConfig.IP6TablesPath
	}

	if len(c.Firewall.Directions) == 0 {
		c.Firewall.Directions = DefaultFirewallConfig.Directions
	}

	seen := make(map[string]bool)
	for i, direction := range c.Firewall.Directions {
		direction = strings.ToLower(strings.TrimSpace(direction))
		if !utils.IsStringInSlice(direction, validDirections) {
			return fmt.Errorf("firewall.directions[%d] must be %s, got '%s'", i, utils.StringJoinOr(validDirections), c.Firewall.Directions[i])
		}
		if seen[direction] {
			return fmt.Errorf("firewall.directions contains '%s' more than once", direction)
		}
		seen[direction] = true
		c.Firewall.Directions[i] = direction
	}

	if c.Firewall.Target == "" {
		c.Firewall.Target = DefaultFirewallConfig.Target
	}

	if !utils.IsStringInSliceFold(c.Firewall.Target, validTargets) {
		return fmt.Errorf("firewall.target must be %s, got '%s'", utils.StringJoinOr(validTargets), c.Firewall.Target)
	}
	c.Firewall.Target = strings.ToUpper(c.Firewall.Target)

	return nil
}

func (c *Config) validateOPNsenseConfig() error {
	opn := c.Firewall.OPNsense
	if opn == nil {
		return fmt.Errorf("firewall.opnsense must be set to use the opnsense backend")
	}

	if opn.RouterEndpoint == "" {
		return fmt.Errorf("firewall.opnsense.router_endpoint is required")
	}

	u, err := url.Parse(opn.RouterEndpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("firewall.opnsense.router_endpoint must be an http(s) URL, got '%s'", opn.RouterEndpoint)
	}

	if opn.RouterAPIKey == "" || opn.RouterAPISecret == "" {
		return fmt.Errorf("firewall.opnsense.router_api_key and router_api_secret are required")
	}

	if opn.AliasUUID == "" {
		return fmt.Errorf("firewall.opnsense.alias_uuid is required")
	}

	return nil
}

func (c *Config) validateBlockingConfig() error {
	if c.Blocking.DefaultTTL == 0 {
		c.Blocking.DefaultTTL = DefaultBlockingConfig.DefaultTTL
	} else if c.Blocking.DefaultTTL < 0 {
		return fmt.Errorf("blocking.default_ttl must be positive")
	}

	if c.Blocking.SweepInterval == 0 {
		c.Blocking.SweepInterval = DefaultBlockingConfig.SweepInterval
	} else if c.Blocking.SweepInterval < time.Second {
		return fmt.Errorf("blocking.sweep_interval cannot be less than 1 second")
	}

	// A negative resync interval disables the resync job.
	if c.Blocking.ResyncInterval == 0 {
		c.Blocking.ResyncInterval = DefaultBlockingConfig.ResyncInterval
	} else if c.Blocking.ResyncInterval > 0 && c.Blocking.ResyncInterval < 30*time.Second {
		return fmt.Errorf("blocking.resync_interval cannot be less than 30 seconds")
	}

	if c.Blocking.OperationTimeout == 0 {
		c.Blocking.OperationTimeout = DefaultBlockingConfig.OperationTimeout
	} else if c.Blocking.OperationTimeout < 0 {
		return fmt.Errorf("blocking.operation_timeout must be positive")
	}

	return nil
}

func (c *Config) validateStoreConfig() error {
	if c.Store.Type == "" {
		c.Store.Type = DefaultStoreConfig.Type
	}

	switch c.Store.Type {
	case "file":
		if c.Store.StateFile == "" {
			c.Store.StateFile = DefaultStoreConfig.StateFile
		}
		if c.Store.HistoryFile == "" {
			c.Store.HistoryFile = DefaultStoreConfig.HistoryFile
		}
		if c.Store.StateFile == c.Store.HistoryFile {
			return fmt.Errorf("store.state_file and store.history_file must be different files")
		}
		return nil
	case "redis":
		return c.validateRedisConfig()
	case "postgres":
		return c.validatePostgresConfig()
	default:
		return fmt.Errorf("invalid store type: %s, must be %s", c.Store.Type, utils.StringJoinOr(validStoreTypes))
	}
}

func (c *Config) validateRedisConfig() error {
	if c.Redis == nil {
		return fmt.Errorf("redis configuration must be set to use the redis store")
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisConfig.KeyPrefix
	}

	if c.Redis.Index < 0 {
		return fmt.Errorf("redis index must be non-negative, got %d", c.Redis.Index)
	}

	const maxRedisDB = 15
	if c.Redis.Index > maxRedisDB {
		return fmt.Errorf("redis index %d exceeds typical maximum of %d", c.Redis.Index, maxRedisDB)
	}

	if c.Redis.Sentinel != nil {
		if c.Redis.Sentinel.MasterName == "" {
			return fmt.Errorf("sentinel master_name is required")
		}
		if len(c.Redis.Sentinel.SentinelAddresses) == 0 {
			return fmt.Errorf("at least one sentinel address is required")
		}
		return nil
	}

	if c.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}

	if _, _, err := net.SplitHostPort(c.Redis.Address); err != nil {
		return fmt.Errorf("invalid redis address format (expected host:port): %w", err)
	}

	return nil
}

func (c *Config) validatePostgresConfig() error {
	if c.Postgres == nil {
		return fmt.Errorf("postgres configuration must be set to use the postgres store")
	}

	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required when the postgres store is used")
	}

	if c.Postgres.Port == 0 {
		c.Postgres.Port = DefaultPostgresConfig.Port
	}

	if c.Postgres.Port < 0 || c.Postgres.Port > 65535 {
		return fmt.Errorf("postgres.port must be between 1 and 65535, got %d", c.Postgres.Port)
	}

	if c.Postgres.Database == "" {
		return fmt.Errorf("postgres.database is required when the postgres store is used")
	}

	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = DefaultPostgresConfig.SSLMode
	}

	return nil
}

func (c *Config) validateResolverConfig() error {
	if c.Resolver.Timeout == 0 {
		c.Resolver.Timeout = DefaultResolverConfig.Timeout
	} else if c.Resolver.Timeout < 0 {
		return fmt.Errorf("resolver.timeout must be positive")
	}

	for i, server := range c.Resolver.Servers {
		if _, _, err := net.SplitHostPort(server); err != nil {
			// bare addresses default to port 53
			if net.ParseIP(server) == nil {
				return fmt.Errorf("resolver.servers[%d] is not a valid address: %s", i, server)
			}
			c.Resolver.Servers[i] = net.JoinHostPort(server, "53")
		}
	}

	return nil
}
