package router

import (
	"log/slog"
	"sync"

	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/events"
	"github.com/rickgao/finex-ws/internal/metrics"
)

// Resolver completes pending requests waiting on a namespace.
type Resolver interface {
	// Resolve reports whether a pending request consumed msg.
	Resolve(namespace string, msg Message) bool
}

// Dispatcher routes classified messages to the resolver, hooks and bus.
type Dispatcher struct {
	bus      *events.Bus
	resolver Resolver
	hooks    *Hooks
	logger   *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewDispatcher creates a Dispatcher. resolver and hooks may be nil.
func NewDispatcher(bus *events.Bus, resolver Resolver, hooks *Hooks, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if hooks == nil {
		hooks = NewHooks()
	}

	return &Dispatcher{
		bus:      bus,
		resolver: resolver,
		hooks:    hooks,
		logger:   logger,
	}
}

// Attach routes every bus "message" event through the dispatcher.
func (d *Dispatcher) Attach() (detach func()) {
	return d.bus.On(string(connection.EventMessage), func(payload any) {
		if ev, ok := payload.(connection.Event); ok {
			d.Dispatch(ev)
		}
	})
}

// Dispatch classifies a channel message event and routes it.
func (d *Dispatcher) Dispatch(ev connection.Event) {
	d.mu.Lock()
	d.stats.MessagesReceived++
	d.mu.Unlock()

	msg, err := Classify(ev.Data)
	if err != nil {
		d.logger.Warn("failed to classify message", "role", ev.Role, "error", err)
		d.mu.Lock()
		d.stats.ParseErrors++
		d.mu.Unlock()
		return
	}
	msg.Role = ev.Role
	msg.ReceivedAt = ev.ReceivedAt

	d.Route(msg)
}

// Route delivers an already classified message.
func (d *Dispatcher) Route(msg Message) {
	metrics.MessagesRouted.WithLabelValues(string(msg.Kind)).Inc()

	resolved := false
	if d.resolver != nil {
		resolved = d.resolver.Resolve(msg.Namespace, msg)
	}

	fired := 0
	if msg.Kind == KindPush {
		fired = d.hooks.fire(msg)
	}

	d.bus.Emit(msg.Namespace, msg)

	d.mu.Lock()
	d.stats.MessagesRouted++
	if resolved {
		d.stats.Resolved++
	}
	d.stats.HooksFired += int64(fired)
	d.mu.Unlock()
}

// AddCallback returns the hook registered under name.
func (d *Dispatcher) AddCallback(name string) (*Hook, error) {
	return d.hooks.Get(name)
}

// Hooks returns the hook registry.
func (d *Dispatcher) Hooks() *Hooks {
	return d.hooks
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
