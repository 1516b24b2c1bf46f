package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/finex-ws/internal/wire"
)

// Client represents a single WebSocket channel to the venue.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection and waits for the read loop to
	// confirm closure.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Subscribe requests a topic on this channel.
	Subscribe(topic string, args map[string]any) error

	// Unsubscribe cancels a topic on this channel.
	Unsubscribe(topic string, args map[string]any) error

	// Events returns the channel's lifecycle and message events.
	Events() <-chan Event

	// IsConnected returns current connection state.
	IsConnected() bool

	// Role returns the role this channel serves.
	Role() Role
}

// ClientFactory builds a channel for a role. Used by the Registry.
type ClientFactory func(role Role, cfg ClientConfig, logger *slog.Logger) Client

// connSession holds per-connection state; a new one is created on every
// successful Connect.
type connSession struct {
	conn    *websocket.Conn
	stopped chan struct{} // closed when the read loop exits
	stale   atomic.Bool
}

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	role   Role
	logger *slog.Logger

	events chan Event
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	sess       *connSession
	connected  bool
	lastPingAt time.Time
	closed     bool
}

// NewClient creates a new WebSocket channel.
func NewClient(role Role, cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	return &client{
		cfg:    cfg,
		role:   role,
		logger: logger.With("role", role),
		events: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")

	handshake := c.cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: handshake,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.role, err)
	}

	sess := &connSession{
		conn:    conn,
		stopped: make(chan struct{}),
	}

	c.mu.Lock()
	c.sess = sess
	c.connected = true
	c.lastPingAt = time.Now()
	c.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	c.emit(Event{Type: EventOpen})

	go c.readLoop(sess)
	go c.heartbeatLoop(sess)

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection. Connection status flips to
// disconnected only once the read loop has exited.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sess := c.sess
	c.mu.Unlock()

	close(c.done)

	if sess == nil {
		return nil
	}

	c.writeMu.Lock()
	sess.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	err := sess.conn.Close()
	<-sess.stopped

	return err
}

// Send writes raw bytes to the connection.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected || c.closed {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.sess.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(c.writeDeadline())
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Subscribe sends a subscribe request for topic.
func (c *client) Subscribe(topic string, args map[string]any) error {
	return c.sendCommand("subscribe", topic, args)
}

// Unsubscribe sends an unsubscribe request for topic.
func (c *client) Unsubscribe(topic string, args map[string]any) error {
	return c.sendCommand("unsubscribe", topic, args)
}

func (c *client) sendCommand(event, topic string, args map[string]any) error {
	data, err := wire.Marshal(subscribeCommand(event, topic, args))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	return c.Send(data)
}

// Events returns the event channel.
func (c *client) Events() <-chan Event {
	return c.events
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Role returns the channel role.
func (c *client) Role() Role {
	return c.role
}

// writeDeadline is zero (no deadline) when WriteTimeout is unset.
func (c *client) writeDeadline() time.Time {
	if c.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.WriteTimeout)
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// emit forwards an event without blocking the read loop.
func (c *client) emit(ev Event) {
	ev.Role = c.role
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping event", "type", ev.Type)
	}
}

// readLoop reads frames until the connection ends, then confirms closure.
func (c *client) readLoop(sess *connSession) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		c.emit(Event{Type: EventClose})
		close(sess.stopped)
	}()

	for {
		_, data, err := sess.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() or a stale teardown
			select {
			case <-c.done:
				return
			default:
			}
			if !sess.stale.Load() {
				c.emit(Event{Type: EventError, Err: err, ReceivedAt: receivedAt})
			}
			return
		}

		c.emit(Event{
			Type:       EventMessage,
			Data:       data,
			ReceivedAt: receivedAt,
		})
	}
}

// heartbeatLoop pings the server and tears down stale connections.
func (c *client) heartbeatLoop(sess *connSession) {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stopped:
			return
		case <-ticker.C:
			if err := sess.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), c.writeDeadline()); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if c.cfg.PingTimeout > 0 && time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				sess.stale.Store(true)
				c.emit(Event{Type: EventError, Err: ErrStaleConnection})
				sess.conn.Close()
				return
			}
		}
	}
}
