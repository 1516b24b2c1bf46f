package venue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/finex-ws/internal/api"
	"github.com/rickgao/finex-ws/internal/auth"
	"github.com/rickgao/finex-ws/internal/config"
	"github.com/rickgao/finex-ws/internal/connection"
)

// OptionsFromConfig maps a loaded configuration onto Options. When the chain
// id is not configured, it is fetched from network.rpc_url on first use.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	if logger == nil {
		logger = slog.Default()
	}

	transports := make(map[connection.Role]string, len(cfg.Transports))
	for role, url := range cfg.Transports {
		transports[connection.Role(role)] = url
	}

	opts := Options{
		Transports: transports,
		Connection: connection.ClientConfig{
			PingInterval:     cfg.Connection.PingInterval,
			PingTimeout:      cfg.Connection.PingTimeout,
			WriteTimeout:     cfg.Connection.WriteTimeout,
			HandshakeTimeout: cfg.Connection.HandshakeTimeout,
			BufferSize:       cfg.Connection.BufferSize,
		},
		Network: auth.Network{
			Blockchain: cfg.Network.Blockchain,
			Protocol:   cfg.Network.Protocol,
			Host:       cfg.Network.Host,
			Port:       cfg.Network.Port,
			ChainID:    cfg.Network.ChainID,
		},
		Contract:       cfg.Exchange.Contract,
		RequestTimeout: cfg.Exchange.RequestTimeout,
		AuthTimeout:    cfg.Exchange.RequestTimeout,
		VerifyTimeout:  cfg.Exchange.VerifyTimeout,
		Logger:         logger,
	}

	if cfg.Network.RPCURL != "" {
		apiOpts := []api.ClientOption{
			api.WithTimeout(cfg.API.Timeout),
			api.WithLogger(logger),
		}
		if cfg.API.MaxRetries > 0 {
			apiOpts = append(apiOpts, api.WithRetries(cfg.API.MaxRetries, time.Second))
		}
		opts.ChainFetch = api.NewClient(cfg.Network.RPCURL, "", apiOpts...).ChainID
	}
	return opts
}

// StaticCredentials builds credentials from the auth section, loading the
// signing key from disk. It returns nil when no account is configured.
func StaticCredentials(cfg config.AuthConfig) (*auth.Credentials, error) {
	if cfg.Account == "" {
		return nil, nil
	}

	signer, err := auth.LoadKeySigner(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	return &auth.Credentials{
		Keys:   &auth.StaticKeys{Account: cfg.Account, Permission: cfg.Permission},
		Signer: signer,
	}, nil
}
