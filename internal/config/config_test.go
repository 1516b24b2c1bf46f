package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
transports:
  pub: wss://ws.example.com/v1/public
  priv: wss://ws.example.com/v1/private
auth:
  account: alice
  private_key_path: /keys/alice.pem
network:
  chain_id: abc123
exchange:
  contract: dexcontract
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Transports) != 2 {
		t.Errorf("len(Transports) = %d, want 2", len(cfg.Transports))
	}
	if cfg.Transports["priv"] != "wss://ws.example.com/v1/private" {
		t.Errorf("Transports[priv] = %q", cfg.Transports["priv"])
	}
	if cfg.Auth.Account != "alice" {
		t.Errorf("Auth.Account = %q, want %q", cfg.Auth.Account, "alice")
	}
	if cfg.Network.ChainID != "abc123" {
		t.Errorf("Network.ChainID = %q, want %q", cfg.Network.ChainID, "abc123")
	}
	if cfg.Exchange.Contract != "dexcontract" {
		t.Errorf("Exchange.Contract = %q, want %q", cfg.Exchange.Contract, "dexcontract")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_WS_HOST", "ws.example.com")

	yaml := `
transports:
  pub: wss://${TEST_WS_HOST}/v1/public
journal:
  database:
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Journal.Database.Password != "secret123" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "secret123")
	}
	if cfg.Transports["pub"] != "wss://ws.example.com/v1/public" {
		t.Errorf("Transports[pub] = %q", cfg.Transports["pub"])
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %q, want read config file prefix", err.Error())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "transports: [unclosed")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
	if !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("error = %q, want parse config yaml prefix", err.Error())
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
transports:
  pub: wss://ws.example.com/v1/public
auth:
  account: alice
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Connection defaults
	if cfg.Connection.PingInterval != DefaultPingInterval {
		t.Errorf("Connection.PingInterval = %v, want %v", cfg.Connection.PingInterval, DefaultPingInterval)
	}
	if cfg.Connection.PingTimeout != DefaultPingTimeout {
		t.Errorf("Connection.PingTimeout = %v, want %v", cfg.Connection.PingTimeout, DefaultPingTimeout)
	}
	if cfg.Connection.BufferSize != DefaultChannelBuffer {
		t.Errorf("Connection.BufferSize = %d, want %d", cfg.Connection.BufferSize, DefaultChannelBuffer)
	}

	// Auth defaults
	if cfg.Auth.Permission != DefaultPermission {
		t.Errorf("Auth.Permission = %q, want %q", cfg.Auth.Permission, DefaultPermission)
	}

	// Exchange defaults
	if cfg.Exchange.Contract != DefaultContract {
		t.Errorf("Exchange.Contract = %q, want %q", cfg.Exchange.Contract, DefaultContract)
	}
	if cfg.Exchange.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("Exchange.RequestTimeout = %v, want %v", cfg.Exchange.RequestTimeout, DefaultRequestTimeout)
	}

	// API defaults
	if cfg.API.MaxRetries != 0 {
		t.Errorf("API.MaxRetries = %d, want 0", cfg.API.MaxRetries)
	}

	// Journal defaults
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Journal.Database.SSLMode != DefaultDBSSLMode {
		t.Errorf("Journal.Database.SSLMode = %q, want %q", cfg.Journal.Database.SSLMode, DefaultDBSSLMode)
	}
	if cfg.Journal.BatchSize != DefaultBatchSize {
		t.Errorf("Journal.BatchSize = %d, want %d", cfg.Journal.BatchSize, DefaultBatchSize)
	}
	if cfg.Journal.FlushInterval != DefaultFlushInterval {
		t.Errorf("Journal.FlushInterval = %v, want %v", cfg.Journal.FlushInterval, DefaultFlushInterval)
	}

	// Metrics defaults
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Connection: ConnectionConfig{PingInterval: 5 * time.Second, BufferSize: 7},
		Exchange:   ExchangeConfig{Contract: "custom"},
		API:        APIConfig{MaxRetries: 3},
	}
	cfg.ApplyDefaults()

	if cfg.Connection.PingInterval != 5*time.Second {
		t.Errorf("Connection.PingInterval = %v, want 5s", cfg.Connection.PingInterval)
	}
	if cfg.Connection.BufferSize != 7 {
		t.Errorf("Connection.BufferSize = %d, want 7", cfg.Connection.BufferSize)
	}
	if cfg.Exchange.Contract != "custom" {
		t.Errorf("Exchange.Contract = %q, want custom", cfg.Exchange.Contract)
	}
	if cfg.API.MaxRetries != 3 {
		t.Errorf("API.MaxRetries = %d, want 3", cfg.API.MaxRetries)
	}
	if cfg.Auth.Permission != "" {
		t.Errorf("Auth.Permission = %q, want empty without account", cfg.Auth.Permission)
	}
}

func TestLoadAndValidate(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.pem")
	yaml := `
transports:
  pub: wss://ws.example.com/v1/public
  priv: wss://ws.example.com/v1/private
  aux: wss://ws.example.com/v1/aux
auth:
  account: alice
  private_key_path: ` + keyPath + `
network:
  rpc_url: https://rpc.example.com
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Auth.PrivateKeyPath != keyPath {
		t.Errorf("Auth.PrivateKeyPath = %q, want %q", cfg.Auth.PrivateKeyPath, keyPath)
	}

	bad := writeTempFile(t, "auth:\n  account: alice\n")
	_, err = LoadAndValidate(bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.HasPrefix(err.Error(), "validate config: ") {
		t.Errorf("error = %q, want validate config prefix", err.Error())
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Transports: map[string]string{
				"pub":  "wss://ws.example.com/v1/public",
				"priv": "wss://ws.example.com/v1/private",
			},
			Network: NetworkConfig{ChainID: "abc"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	validDB := DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no transports",
			mutate:  func(c *Config) { c.Transports = nil },
			wantErr: "transports must define at least one role",
		},
		{
			name:    "empty transport url",
			mutate:  func(c *Config) { c.Transports["aux"] = "" },
			wantErr: "transports.aux is required",
		},
		{
			name:    "non websocket scheme",
			mutate:  func(c *Config) { c.Transports["pub"] = "https://ws.example.com" },
			wantErr: `transports.pub must use ws or wss, got "https"`,
		},
		{
			name:    "ping timeout below interval",
			mutate:  func(c *Config) { c.Connection.PingTimeout = time.Second },
			wantErr: "connection.ping_timeout (1s) must be >= connection.ping_interval (30s)",
		},
		{
			name:    "account without key",
			mutate:  func(c *Config) { c.Auth.Account = "alice" },
			wantErr: "auth.private_key_path is required when auth.account is set",
		},
		{
			name:    "no chain source",
			mutate:  func(c *Config) { c.Network.ChainID = "" },
			wantErr: "network.rpc_url is required when network.chain_id is empty",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.API.MaxRetries = -1 },
			wantErr: "api.max_retries must be >= 0",
		},
		{
			name: "journal missing host",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = validDB
				c.Journal.Database.Host = ""
			},
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal min exceeds max",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = validDB
				c.Journal.Database.MinConns = 10
			},
			wantErr: "journal.database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "journal disabled skips database",
			mutate: func(c *Config) {
				c.Journal.Enabled = false
				c.Journal.Database = DBConfig{}
			},
			wantErr: "",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
