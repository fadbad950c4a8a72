package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      LogConfig       `yaml:"log"`
	CORS     CORSConfig      `yaml:"cors"`
	API      APIConfig       `yaml:"api"`
	Firewall FirewallConfig  `yaml:"firewall"`
	Blocking BlockingConfig  `yaml:"blocking"`
	Store    StoreConfig     `yaml:"store"`
	Redis    *RedisConfig    `yaml:"redis"`
	Postgres *PostgresConfig `yaml:"postgres"`
	Resolver ResolverConfig  `yaml:"resolver"`
	Enrich   EnrichConfig    `yaml:"enrich"`
}

type ServerConfig struct {
	Port  int                `yaml:"port"`
	Debug *ServerDebugConfig `yaml:"debug"`
	// TrustedProxies lists the addresses or CIDR ranges whose forwarding
	// headers (X-Forwarded-For, X-Real-IP, True-Client-IP) are honoured.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

var DefaultServerConfig = ServerConfig{
	Port: 8080,
}

type ServerDebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

var DefaultDebugConfig = ServerDebugConfig{
	Enabled: false,
	Host:    "localhost",
	Port:    5123,
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // "text", "json" or "pretty"
	ActionsFile string `yaml:"actions_file"`
	StackTraces bool   `yaml:"stack_traces"`
}

var DefaultLogConfig = LogConfig{
	Level:  "info",
	Format: "text",
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAgeSeconds    int      `yaml:"max_age_seconds"`
}

var DefaultCORSConfig = CORSConfig{
	AllowedOrigins: []string{"http://localhost:5173"},
	AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	AllowedHeaders: []string{"*"},
	MaxAgeSeconds:  300,
}

// APIConfig protects the mutating endpoints. TokenDigest is an argon2id
// digest of the bearer token; when empty the API is unauthenticated.
type APIConfig struct {
	TokenDigest string `yaml:"token_digest"`
}

type FirewallConfig struct {
	Backend        string        `yaml:"backend"` // "iptables", "opnsense" or "memory"
	IPTablesPath   string        `yaml:"iptables_path"`
	IP6TablesPath  string        `yaml:"ip6tables_path"`
	UseSudo        bool          `yaml:"use_sudo"`
	Directions     []string      `yaml:"directions"` // "input", "output"
	Target         string        `yaml:"target"`     // "DROP" or "REJECT"
	EnableIPv6     bool          `yaml:"enable_ipv6"`
	CommandTimeout time.Duration `yaml:"command_timeout"`

	OPNsense *OPNsenseConfig `yaml:"opnsense"`
}

type OPNsenseConfig struct {
	RouterEndpoint  string `yaml:"router_endpoint"`
	RouterAPIKey    string `yaml:"router_api_key"`
	RouterAPISecret string `yaml:"router_api_secret"`
	AliasUUID       string `yaml:"alias_uuid"`
}

var DefaultFirewallConfig = FirewallConfig{
	Backend:        "iptables",
	IPTablesPath:   "/sbin/iptables",
	IP6TablesPath:  "/sbin/ip6tables",
	Directions:     []string{"input", "output"},
	Target:         "DROP",
	CommandTimeout: 10 * time.Second,
}

type BlockingConfig struct {
	DefaultTTL       time.Duration `yaml:"default_ttl"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	ResyncInterval   time.Duration `yaml:"resync_interval"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

var DefaultBlockingConfig = BlockingConfig{
	DefaultTTL:       time.Hour,
	SweepInterval:    60 * time.Second,
	ResyncInterval:   10 * time.Minute,
	OperationTimeout: 5 * time.Second,
}

type StoreConfig struct {
	Type        string `yaml:"type"` // "file", "redis" or "postgres"
	StateFile   string `yaml:"state_file"`
	HistoryFile string `yaml:"history_file"`
}

var DefaultStoreConfig = StoreConfig{
	Type:        "file",
	StateFile:   "data/blocklist.jsonl",
	HistoryFile: "data/history.jsonl",
}

type RedisConfig struct {
	Address   string               `yaml:"address"`
	Username  string               `yaml:"username"`
	Password  string               `yaml:"password"`
	Sentinel  *RedisSentinelConfig `yaml:"sentinel"`
	Index     int                  `yaml:"index"`
	KeyPrefix string               `yaml:"key_prefix"`
}

var DefaultRedisConfig = RedisConfig{
	Index:     0,
	KeyPrefix: "blockwatch",
}

type RedisSentinelConfig struct {
	MasterName        string   `yaml:"master_name"`
	SentinelAddresses []string `yaml:"addresses"`
	SentinelPassword  string   `yaml:"password"`
	SentinelUsername  string   `yaml:"username"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

var DefaultPostgresConfig = PostgresConfig{
	Port:    5432,
	SSLMode: "prefer",
}

type ResolverConfig struct {
	Servers []string      `yaml:"servers"`
	Timeout time.Duration `yaml:"timeout"`
}

var DefaultResolverConfig = ResolverConfig{
	Timeout: 2 * time.Second,
}

type EnrichConfig struct {
	GeoIPDir string `yaml:"geoip_dir"`
}

var (
	validLogFormats       = []string{"text", "json", "pretty"}
	validLogLevels        = []string{"debug", "info", "warn", "error"}
	validFirewallBackends = []string{"iptables", "opnsense", "memory"}
	validDirections       = []string{"input", "output"}
	validTargets          = []string{"DROP", "REJECT"}
	validStoreTypes       = []string{"file", "redis", "postgres"}
)
