package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/finex-ws/internal/metrics"
	"github.com/rickgao/finex-ws/internal/wire"
)

// Registry owns one channel per role.
type Registry struct {
	logger  *slog.Logger
	clients map[Role]Client
	roles   []Role
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	factory ClientFactory
}

// WithClientFactory replaces the WebSocket channel constructor.
func WithClientFactory(f ClientFactory) RegistryOption {
	return func(o *registryOptions) {
		o.factory = f
	}
}

// NewRegistry creates one channel per entry of endpoints (role → URL).
func NewRegistry(endpoints map[Role]string, cfg ClientConfig, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	o := registryOptions{factory: NewClient}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		logger:  logger,
		clients: make(map[Role]Client, len(endpoints)),
		roles:   make([]Role, 0, len(endpoints)),
	}

	for role, url := range endpoints {
		clientCfg := cfg
		clientCfg.URL = url
		r.clients[role] = o.factory(role, clientCfg, logger.With("role", role))
		r.roles = append(r.roles, role)
	}
	sort.Slice(r.roles, func(i, j int) bool { return r.roles[i] < r.roles[j] })

	return r
}

// Roles returns the configured roles in sorted order.
func (r *Registry) Roles() []Role {
	out := make([]Role, len(r.roles))
	copy(out, r.roles)
	return out
}

// Len returns the number of channels.
func (r *Registry) Len() int {
	return len(r.clients)
}

// Client returns the channel for role.
func (r *Registry) Client(role Role) (Client, error) {
	c, ok := r.clients[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTransport, role)
	}
	return c, nil
}

// Send writes msg on the channel for role. []byte is sent as-is; anything
// else is encoded as JSON.
func (r *Registry) Send(role Role, msg any) error {
	c, err := r.Client(role)
	if err != nil {
		return err
	}

	data, ok := msg.([]byte)
	if !ok {
		data, err = wire.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message for %s: %w", role, err)
		}
	}

	if err := c.Send(data); err != nil {
		return fmt.Errorf("send on %s: %w", role, err)
	}
	metrics.MessagesSent.WithLabelValues(string(role)).Inc()
	return nil
}

// Subscribe requests topic on the channel for role.
func (r *Registry) Subscribe(role Role, topic string, args map[string]any) error {
	c, err := r.Client(role)
	if err != nil {
		return err
	}
	return c.Subscribe(topic, args)
}

// Unsubscribe cancels topic on the channel for role.
func (r *Registry) Unsubscribe(role Role, topic string, args map[string]any) error {
	c, err := r.Client(role)
	if err != nil {
		return err
	}
	return c.Unsubscribe(topic, args)
}

// IsConnected reports whether the channel for role is connected.
func (r *Registry) IsConnected(role Role) bool {
	c, ok := r.clients[role]
	return ok && c.IsConnected()
}

// Open connects every channel concurrently. Failed channels are not retried.
func (r *Registry) Open(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, role := range r.roles {
		role, c := role, r.clients[role]
		g.Go(func() error {
			if err := c.Connect(gctx); err != nil {
				r.logger.Warn("failed to connect channel", "role", role, "error", err)
				return fmt.Errorf("open %s: %w", role, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close closes every channel.
func (r *Registry) Close() error {
	var errs []error
	for _, role := range r.roles {
		if err := r.clients[role].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", role, err))
		}
	}
	return errors.Join(errs...)
}
