package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPingInterval     = 30 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultChannelBuffer    = 10000
	DefaultPermission       = "active"
	DefaultBlockchain       = "eos"
	DefaultProtocol         = "https"
	DefaultNetworkPort      = 443
	DefaultContract         = "exchange"
	DefaultRequestTimeout   = 10 * time.Second
	DefaultVerifyTimeout    = 30 * time.Second
	DefaultAPITimeout       = 10 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 100
	DefaultFlushInterval    = 1 * time.Second
	DefaultJournalBuffer    = 1000
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// Connection defaults
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultChannelBuffer
	}

	if c.Auth.Account != "" && c.Auth.Permission == "" {
		c.Auth.Permission = DefaultPermission
	}

	// Network defaults
	if c.Network.Blockchain == "" {
		c.Network.Blockchain = DefaultBlockchain
	}
	if c.Network.Protocol == "" {
		c.Network.Protocol = DefaultProtocol
	}
	if c.Network.Port == 0 {
		c.Network.Port = DefaultNetworkPort
	}

	// Exchange defaults
	if c.Exchange.Contract == "" {
		c.Exchange.Contract = DefaultContract
	}
	if c.Exchange.RequestTimeout == 0 {
		c.Exchange.RequestTimeout = DefaultRequestTimeout
	}
	if c.Exchange.VerifyTimeout == 0 {
		c.Exchange.VerifyTimeout = DefaultVerifyTimeout
	}

	// API defaults; retries stay off unless configured
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultJournalBuffer
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
