package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrMissingTransport = errors.New("missing transport")
)

// Role identifies the purpose of a channel.
type Role string

const (
	RolePublic  Role = "pub"  // market data
	RolePrivate Role = "priv" // account data, auth and order commands
	RoleAux     Role = "aux"  // transaction verification
)

// EventType is a channel lifecycle event kind.
type EventType string

const (
	EventOpen    EventType = "open"
	EventClose   EventType = "close"
	EventError   EventType = "error"
	EventMessage EventType = "message"
)

// Event is emitted by a channel and re-emitted by the Aggregator.
type Event struct {
	Type       EventType
	Role       Role
	Data       []byte    // Raw frame (message events only)
	Err        error     // Error events only
	ReceivedAt time.Time // Local timestamp when the event was produced
}

// ClientConfig configures a WebSocket channel.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://api.example.com/ws)
	PingTimeout      time.Duration // Max time without ping before considering connection stale
	PingInterval     time.Duration // Interval between keepalive pings
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial handshake timeout
	BufferSize       int           // Event channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       10000,
	}
}

// subscribeCommand is the wire shape of a subscribe/unsubscribe request.
// Args are merged into the top-level object.
func subscribeCommand(event, topic string, args map[string]any) map[string]any {
	cmd := make(map[string]any, len(args)+2)
	for k, v := range args {
		cmd[k] = v
	}
	cmd["event"] = event
	cmd["channel"] = topic
	return cmd
}
