package connection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/finex-ws/internal/events"
	"github.com/rickgao/finex-ws/internal/metrics"
)

// Bus event names emitted by the Aggregator. Payloads are Event values,
// except EventReady which carries no payload.
const (
	EventReady = "ready"
)

// Aggregator turns per-channel lifecycle events into a single ready signal.
type Aggregator struct {
	registry *Registry
	bus      *events.Bus
	logger   *slog.Logger

	mu        sync.Mutex
	connected map[Role]bool
	seen      map[Role]bool
	ready     bool
	readyCh   chan struct{}

	wg sync.WaitGroup
}

// NewAggregator creates an Aggregator over every channel of registry.
func NewAggregator(registry *Registry, bus *events.Bus, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		registry:  registry,
		bus:       bus,
		logger:    logger,
		connected: make(map[Role]bool),
		seen:      make(map[Role]bool),
		readyCh:   make(chan struct{}),
	}
}

// Start consumes events from every channel until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	for _, role := range a.registry.Roles() {
		c, _ := a.registry.Client(role)
		a.wg.Add(1)
		go a.consume(ctx, c)
	}
}

// Wait blocks until every consumer goroutine has exited.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// Ready is closed once every channel has connected at least once.
func (a *Aggregator) Ready() <-chan struct{} {
	return a.readyCh
}

// IsReady reports whether the ready event has fired.
func (a *Aggregator) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Connected reports the recorded status of role.
func (a *Aggregator) Connected(role Role) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected[role]
}

func (a *Aggregator) consume(ctx context.Context, c Client) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.Events():
			a.Handle(ev)
		}
	}
}

// Handle records a single channel event and re-emits it on the bus.
func (a *Aggregator) Handle(ev Event) {
	switch ev.Type {
	case EventOpen:
		a.handleOpen(ev)

	case EventClose:
		a.mu.Lock()
		a.connected[ev.Role] = false
		a.mu.Unlock()

		metrics.ChannelConnected.WithLabelValues(string(ev.Role)).Set(0)
		a.logger.Info("channel disconnected", "role", ev.Role)
		a.bus.Emit(string(EventClose), ev)

	case EventError:
		a.logger.Warn("channel error", "role", ev.Role, "error", ev.Err)
		a.bus.Emit(string(EventError), ev)

	case EventMessage:
		metrics.MessagesReceived.WithLabelValues(string(ev.Role)).Inc()
		a.bus.Emit(string(EventMessage), ev)
	}
}

func (a *Aggregator) handleOpen(ev Event) {
	total := a.registry.Len()

	a.mu.Lock()
	a.connected[ev.Role] = true
	first := !a.seen[ev.Role]
	a.seen[ev.Role] = true
	fireReady := !a.ready && len(a.seen) == total
	if fireReady {
		a.ready = true
	}
	a.mu.Unlock()

	metrics.ChannelConnected.WithLabelValues(string(ev.Role)).Set(1)
	a.logger.Info("channel connected", "role", ev.Role, "first", first)
	a.bus.Emit(string(EventOpen), ev)

	if fireReady {
		close(a.readyCh)
		metrics.Ready.Set(1)
		a.logger.Info("all channels connected", "channels", total)
		a.bus.Emit(EventReady, nil)
	}
}
