package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rickgao/finex-ws/internal/config"
	"github.com/rickgao/finex-ws/internal/database"
	"github.com/rickgao/finex-ws/internal/journal"
	"github.com/rickgao/finex-ws/internal/venue"
	"github.com/rickgao/finex-ws/internal/version"
	"github.com/rickgao/finex-ws/internal/wire"
)

var errNoCredentials = errors.New("auth.account is not configured")

// app holds the components a command needs. close releases all of them.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *venue.Client
	journal *journal.Writer
	pool    *pgxpool.Pool
}

// newApp loads configuration, wires the optional journal, and starts the
// venue client.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	logger.Info("starting finexctl",
		"version", version.Version,
		"commit", version.Commit,
		"config", opts.configPath,
	)

	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	vopts := venue.OptionsFromConfig(cfg, logger)

	if cfg.Journal.Enabled {
		if err := a.openJournal(ctx); err != nil {
			a.close()
			return nil, err
		}
		vopts.Recorder = a.journal
	}

	a.client = venue.New(vopts)
	if err := a.client.Start(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("start client: %w", err)
	}

	logger.Info("client ready", "channels", len(cfg.Transports))
	return a, nil
}

func (a *app) openJournal(ctx context.Context) error {
	db := a.cfg.Journal.Database
	a.logger.Info("connecting to journal database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return fmt.Errorf("connect journal database: %w", err)
	}
	a.pool = pool

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	a.journal = journal.NewWriter(journal.Config{
		BatchSize:     a.cfg.Journal.BatchSize,
		FlushInterval: a.cfg.Journal.FlushInterval,
		BufferSize:    a.cfg.Journal.BufferSize,
	}, pool, a.logger)
	return a.journal.Start(ctx)
}

// authenticate runs the handshake with the configured static keys.
func (a *app) authenticate(ctx context.Context) error {
	creds, err := venue.StaticCredentials(a.cfg.Auth)
	if err != nil {
		return err
	}
	if creds == nil {
		return errNoCredentials
	}

	acct, err := a.client.Auth(ctx, creds)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	a.logger.Info("authenticated", "account", acct.String())
	return nil
}

func (a *app) close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("close client", "error", err)
		}
	}
	if a.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a.journal.Stop(ctx)
		cancel()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := wire.MarshalIndent(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
