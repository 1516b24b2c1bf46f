package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/metrics"
	"github.com/rickgao/finex-ws/internal/router"
	"github.com/rickgao/finex-ws/internal/venue"
)

type streamOptions struct {
	role     string
	topics   []string
	symbol   string
	withAuth bool
	serve    bool
}

func newStreamCmd(root *rootOptions) *cobra.Command {
	opts := &streamOptions{}

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Subscribe to topics and print routed messages until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStream(ctx, cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.role, "role", string(connection.RolePublic), "channel role to subscribe on")
	cmd.Flags().StringSliceVar(&opts.topics, "topic", nil, "topic to subscribe to (repeatable)")
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "symbol argument for subscriptions")
	cmd.Flags().BoolVar(&opts.withAuth, "auth", false, "authenticate before subscribing")
	cmd.Flags().BoolVar(&opts.serve, "serve", true, "serve /health and metrics")
	return cmd
}

func runStream(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *streamOptions) error {
	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	a.client.On(string(connection.EventMessage), func(payload any) {
		ev, ok := payload.(connection.Event)
		if !ok {
			return
		}
		fmt.Fprintf(out, "%s %s\n", ev.Role, ev.Data)
	})
	a.client.On(string(connection.EventClose), func(payload any) {
		if ev, ok := payload.(connection.Event); ok {
			a.logger.Warn("channel closed", "role", ev.Role)
		}
	})

	if opts.withAuth {
		if err := a.authenticate(ctx); err != nil {
			return err
		}
	}

	var args map[string]any
	if opts.symbol != "" {
		args = map[string]any{"symbol": opts.symbol}
	}
	role := connection.Role(opts.role)
	for _, topic := range opts.topics {
		if err := a.client.Subscribe(role, topic, args); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		a.logger.Info("subscribed", "role", role, "topic", topic)
	}

	if opts.serve {
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", a.cfg.Metrics.Port),
			Handler: newHealthHandler(a.client, a.cfg.Metrics.Path),
		}
		go func() {
			a.logger.Info("starting health server", "port", a.cfg.Metrics.Port)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				a.logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	a.logger.Info("shutting down...")
	return nil
}

// statsSource is the part of venue.Client the health handler reads.
type statsSource interface {
	Stats() venue.Stats
}

// newHealthHandler serves /health (channel readiness and router counters)
// and the Prometheus metrics endpoint.
func newHealthHandler(client statsSource, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := client.Stats()

		health := struct {
			Status    string                   `json:"status"`
			Channels  map[connection.Role]bool `json:"channels"`
			Pending   int                      `json:"pending_requests"`
			AuthState string                   `json:"auth_state"`
			Router    router.Stats             `json:"router"`
		}{
			Status:    "healthy",
			Channels:  stats.Connected,
			Pending:   stats.Pending,
			AuthState: string(stats.AuthState),
			Router:    stats.Router,
		}

		if !stats.Ready {
			health.Status = "starting"
		} else {
			for _, up := range stats.Connected {
				if !up {
					health.Status = "degraded"
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
