package config

import "time"

// Config is the root configuration for a venue client.
type Config struct {
	Transports map[string]string `yaml:"transports"` // role -> WebSocket URL
	Connection ConnectionConfig  `yaml:"connection"`
	Auth       AuthConfig        `yaml:"auth"`
	Network    NetworkConfig     `yaml:"network"`
	Exchange   ExchangeConfig    `yaml:"exchange"`
	API        APIConfig         `yaml:"api"`
	Journal    JournalConfig     `yaml:"journal"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// ConnectionConfig holds per-channel WebSocket settings.
type ConnectionConfig struct {
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// AuthConfig holds static credentials. Leave Account empty to use an
// interactive identity provider.
type AuthConfig struct {
	Account        string `yaml:"account"`
	Permission     string `yaml:"permission"`
	PrivateKeyPath string `yaml:"private_key_path"` // Path to RSA private key PEM file
}

// NetworkConfig describes the chain.
type NetworkConfig struct {
	Blockchain string `yaml:"blockchain"`
	Protocol   string `yaml:"protocol"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	ChainID    string `yaml:"chain_id"` // Optional; fetched from RPCURL when empty
	RPCURL     string `yaml:"rpc_url"`
}

// ExchangeConfig holds exchange contract settings.
type ExchangeConfig struct {
	Contract       string        `yaml:"contract"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	VerifyTimeout  time.Duration `yaml:"verify_timeout"`
}

// APIConfig holds REST client settings.
type APIConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// JournalConfig holds the outbound command journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
