package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFirewallConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		wantError bool
		errMsg    string
	}{
		{
			name:      "empty config applies defaults",
			config:    &Config{},
			wantError: false,
		},
		{
			name: "memory backend skips iptables settings",
			config: &Config{
				Firewall: FirewallConfig{Backend: "memory", Target: "bogus"},
			},
			wantError: false,
		},
		{
			name: "unknown backend",
			config: &Config{
				Firewall: FirewallConfig{Backend: "pf"},
			},
			wantError: true,
			errMsg:    "invalid firewall backend",
		},
		{
			name: "opnsense backend without settings",
			config: &Config{
				Firewall: FirewallConfig{Backend: "opnsense"},
			},
			wantError: true,
			errMsg:    "firewall.opnsense must be set",
		},
		{
			name: "opnsense backend with bad endpoint",
			config: &Config{
				Firewall: FirewallConfig{Backend: "opnsense", OPNsense: &OPNsenseConfig{
					RouterEndpoint: "router.lan", RouterAPIKey: "k", RouterAPISecret: "s", AliasUUID: "u",
				}},
			},
			wantError: true,
			errMsg:    "http(s) URL",
		},
		{
			name: "valid opnsense backend",
			config: &Config{
				Firewall: FirewallConfig{Backend: "opnsense", OPNsense: &OPNsenseConfig{
					RouterEndpoint: "https://router.lan/", RouterAPIKey: "k", RouterAPISecret: "s", AliasUUID: "u",
				}},
			},
			wantError: false,
		},
		{
			name: "invalid direction",
			config: &Config{
				Firewall: FirewallConfig{Directions: []string{"forward"}},
			},
			wantError: true,
			errMsg:    "must be 'input' or 'output'",
		},
		{
			name: "duplicate direction",
			config: &Config{
				Firewall: FirewallConfig{Directions: []string{"input", "INPUT"}},
			},
			wantError: true,
			errMsg:    "more than once",
		},
		{
			name: "reject target is accepted",
			config: &Config{
				Firewall: FirewallConfig{Target: "reject"},
			},
			wantError: false,
		},
		{
			name: "accept target is refused",
			config: &Config{
				Firewall: FirewallConfig{Target: "ACCEPT"},
			},
			wantError: true,
			errMsg:    "must be 'DROP' or 'REJECT'",
		},
		{
			name: "negative timeout",
			config: &Config{
				Firewall: FirewallConfig{CommandTimeout: -time.Second},
			},
			wantError: true,
			errMsg:    "command_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.validateFirewallConfig()
			if tt.wantError {
				if err == nil {
					t.Errorf("validateFirewallConfig() expected error but got none")
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("validateFirewallConfig() error = %v, want error containing %v", err, tt.errMsg)
				}
			} else {
				if err != nil {
					t.Errorf("validateFirewallConfig() unexpected error = %v", err)
				}
			}
		})
	}
}

func TestValidateFirewallConfig_Defaults(t *testing.T) {
	c := &Config{}
	require.NoError(t, c.validateFirewallConfig())

	assert.Equal(t, "iptables", c.Firewall.Backend)
	assert.Equal(t, "/sbin/iptables", c.Firewall.IPTablesPath)
	assert.Equal(t, []string{"input", "output"}, c.Firewall.Directions)
	assert.Equal(t, "DROP", c.Firewall.Target)
	assert.Equal(t, 10*time.Second, c.Firewall.CommandTimeout)
}

func TestValidateBlockingConfig(t *testing.T) {
	tests := []struct {
		name      string
		blocking  BlockingConfig
		wantError bool
		errMsg    string
	}{
		{
			name:      "defaults",
			blocking:  BlockingConfig{},
			wantError: false,
		},
		{
			name:      "negative ttl",
			blocking:  BlockingConfig{DefaultTTL: -time.Minute},
			wantError: true,
			errMsg:    "default_ttl",
		},
		{
			name:      "sweep interval too small",
			blocking:  BlockingConfig{SweepInterval: 100 * time.Millisecond},
			wantError: true,
			errMsg:    "sweep_interval",
		},
		{
			name:      "resync disabled",
			blocking:  BlockingConfig{ResyncInterval: -1},
			wantError: false,
		},
		{
			name:      "resync interval too small",
			blocking:  BlockingConfig{ResyncInterval: 5 * time.Second},
			wantError: true,
			errMsg:    "resync_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Blocking: tt.blocking}
			err := c.validateBlockingConfig()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Positive(t, c.Blocking.DefaultTTL)
			assert.Positive(t, c.Blocking.SweepInterval)
			assert.Positive(t, c.Blocking.OperationTimeout)
		})
	}
}

func TestValidateStoreConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		wantError bool
		errMsg    string
	}{
		{
			name:   "file store defaults",
			config: &Config{},
		},
		{
			name: "same state and history file",
			config: &Config{
				Store: StoreConfig{Type: "file", StateFile: "a.jsonl", HistoryFile: "a.jsonl"},
			},
			wantError: true,
			errMsg:    "must be different",
		},
		{
			name: "redis store without redis config",
			config: &Config{
				Store: StoreConfig{Type: "redis"},
			},
			wantError: true,
			errMsg:    "redis configuration must be set",
		},
		{
			name: "redis store with bad address",
			config: &Config{
				Store: StoreConfig{Type: "redis"},
				Redis: &RedisConfig{Address: "localhost"},
			},
			wantError: true,
			errMsg:    "invalid redis address",
		},
		{
			name: "redis sentinel without addresses",
			config: &Config{
				Store: StoreConfig{Type: "redis"},
				Redis: &RedisConfig{Sentinel: &RedisSentinelConfig{MasterName: "mymaster"}},
			},
			wantError: true,
			errMsg:    "sentinel address",
		},
		{
			name: "valid redis store",
			config: &Config{
				Store: StoreConfig{Type: "redis"},
				Redis: &RedisConfig{Address: "localhost:6379"},
			},
		},
		{
			name: "postgres store without host",
			config: &Config{
				Store:    StoreConfig{Type: "postgres"},
				Postgres: &PostgresConfig{Database: "blockwatch"},
			},
			wantError: true,
			errMsg:    "postgres.host",
		},
		{
			name: "valid postgres store",
			config: &Config{
				Store:    StoreConfig{Type: "postgres"},
				Postgres: &PostgresConfig{Host: "db", Database: "blockwatch"},
			},
		},
		{
			name: "unknown store",
			config: &Config{
				Store: StoreConfig{Type: "sqlite"},
			},
			wantError: true,
			errMsg:    "invalid store type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.validateStoreConfig()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateResolverConfig_AddsDefaultPort(t *testing.T) {
	c := &Config{Resolver: ResolverConfig{Servers: []string{"9.9.9.9", "1.1.1.1:5353"}}}
	require.NoError(t, c.validateResolverConfig())

	assert.Equal(t, []string{"9.9.9.9:53", "1.1.1.1:5353"}, c.Resolver.Servers)
	assert.Equal(t, DefaultResolverConfig.Timeout, c.Resolver.Timeout)

	bad := &Config{Resolver: ResolverConfig{Servers: []string{"not-an-ip"}}}
	assert.Error(t, bad.validateResolverConfig())
}

func TestValidateLogConfig(t *testing.T) {
	c := &Config{Log: LogConfig{Level: "DEBUG", Format: "Pretty"}}
	require.NoError(t, c.validateLogConfig())
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "pretty", c.Log.Format)

	bad := &Config{Log: LogConfig{Level: "trace"}}
	assert.Error(t, bad.validateLogConfig())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	contents := `
server:
  port: 9090
firewall:
  backend: memory
blocking:
  default_ttl: 30m
store:
  type: file
  state_file: ` + filepath.Join(dir, "state.jsonl") + `
  history_file: ` + filepath.Join(dir, "history.jsonl") + `
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv(EnvLogLevel, "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Firewall.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Blocking.DefaultTTL)
	assert.Equal(t, DefaultBlockingConfig.SweepInterval, cfg.Blocking.SweepInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_MissingPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnvironmentOverrides_CreatesSections(t *testing.T) {
	t.Setenv(EnvRedisPassword, "secret")
	t.Setenv(EnvPostgresPort, "6543")

	c := &Config{}
	applyEnvironmentOverrides(c)

	require.NotNil(t, c.Redis)
	assert.Equal(t, "secret", c.Redis.Password)
	require.NotNil(t, c.Postgres)
	assert.Equal(t, 6543, c.Postgres.Port)
}

func TestTrustedProxyPrefixes(t *testing.T) {
	s := ServerConfig{TrustedProxies: []string{"10.0.0.0/8", "192.0.2.10", "::ffff:192.0.2.11", "2001:db8::/32"}}
	prefixes, err := s.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 4)

	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.10/32", prefixes[1].String())
	assert.Equal(t, "192.0.2.11/32", prefixes[2].String())
	assert.Equal(t, "2001:db8::/32", prefixes[3].String())

	bad := &Config{Server: ServerConfig{TrustedProxies: []string{"proxy.lan"}}}
	err = bad.validateServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trusted_proxies")
}
