package router

import (
	"errors"
	"time"

	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/wire"
)

// Errors
var (
	ErrUnrecognized = errors.New("unrecognized message")
	ErrUnknownHook  = errors.New("unknown hook")
)

// Kind is the classification of an inbound message.
type Kind string

const (
	KindPush  Kind = "push"  // [chan, type, data]
	KindReply Kind = "reply" // [chan, type, id, body]
	KindEvent Kind = "event" // {"event": ...}
)

// Message is a classified inbound frame.
type Message struct {
	Kind      Kind
	Role      connection.Role
	Namespace string

	// Array frames
	Type string
	ID   string // Reply correlation id, empty when null

	// Object frames
	Event   string
	Channel string
	Code    int
	Msg     string

	Data       wire.RawMessage // Push data, reply body, or the whole object
	Raw        []byte
	ReceivedAt time.Time
}

// IsAuthError reports whether m is a server-signaled auth failure.
func (m Message) IsAuthError() bool {
	return m.Channel == "auth" && m.Event == "error"
}

// Decode unmarshals the message data into v.
func (m Message) Decode(v any) error {
	return wire.Unmarshal(m.Data, v)
}

// Stats contains dispatcher counters.
type Stats struct {
	MessagesReceived int64
	MessagesRouted   int64
	Resolved         int64
	HooksFired       int64
	ParseErrors      int64
}
