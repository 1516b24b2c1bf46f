package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Transports) == 0 {
		return errors.New("transports must define at least one role")
	}

	roles := make([]string, 0, len(c.Transports))
	for role := range c.Transports {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		if err := validateWSURL("transports."+role, c.Transports[role]); err != nil {
			return err
		}
	}

	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	if c.Connection.PingTimeout < c.Connection.PingInterval {
		return fmt.Errorf("connection.ping_timeout (%s) must be >= connection.ping_interval (%s)",
			c.Connection.PingTimeout, c.Connection.PingInterval)
	}

	if c.Auth.Account != "" && c.Auth.PrivateKeyPath == "" {
		return errors.New("auth.private_key_path is required when auth.account is set")
	}

	if c.Network.ChainID == "" && c.Network.RPCURL == "" {
		return errors.New("network.rpc_url is required when network.chain_id is empty")
	}
	if c.Network.Port < 1 || c.Network.Port > 65535 {
		return fmt.Errorf("network.port must be between 1 and 65535, got %d", c.Network.Port)
	}

	if c.Exchange.Contract == "" {
		return errors.New("exchange.contract is required")
	}
	if c.Exchange.RequestTimeout <= 0 {
		return errors.New("exchange.request_timeout must be > 0")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func validateWSURL(path, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", path)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s must use ws or wss, got %q", path, u.Scheme)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
