package connection

import (
	"context"
	"log/slog"
	"sync"
)

// fakeClient is an in-memory Client used by registry and aggregator tests.
type fakeClient struct {
	role   Role
	cfg    ClientConfig
	events chan Event

	mu         sync.Mutex
	connected  bool
	sent       [][]byte
	connectErr error
}

func newFakeClient(role Role, cfg ClientConfig, _ *slog.Logger) Client {
	return &fakeClient{role: role, cfg: cfg, events: make(chan Event, 16)}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	f.events <- Event{Type: EventOpen, Role: f.role}
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeClient) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeClient) Subscribe(topic string, args map[string]any) error {
	return nil
}

func (f *fakeClient) Unsubscribe(topic string, args map[string]any) error {
	return nil
}

func (f *fakeClient) Events() <-chan Event { return f.events }

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Role() Role { return f.role }

func (f *fakeClient) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}
