package wire

import (
	stdjson "encoding/json"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProtocolVersion is the first element of every command envelope.
const ProtocolVersion = 0

// Opcodes for private/auxiliary channel commands.
const (
	OpNewOrder    = "on"
	OpCancelOrder = "oc"
	OpVerifyTx    = "ct"
)

// PushChainInfo is the public channel push carrying network metadata.
const PushChainInfo = "ci"

// Errors
var (
	// ErrMalformedEnvelope is returned when a frame is not a
	// [version, opcode, id, body] array.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// Envelope is a command sent to the venue. An empty ID encodes as null.
type Envelope struct {
	Version int
	Opcode  string
	ID      string
	Body    any
}

// NewEnvelope builds an envelope with the current protocol version.
func NewEnvelope(opcode, id string, body any) Envelope {
	return Envelope{
		Version: ProtocolVersion,
		Opcode:  opcode,
		ID:      id,
		Body:    body,
	}
}

// MarshalJSON encodes the envelope as a 4-tuple.
func (e Envelope) MarshalJSON() ([]byte, error) {
	var id any
	if e.ID != "" {
		id = e.ID
	}
	return json.Marshal([]any{e.Version, e.Opcode, id, e.Body})
}

// UnmarshalJSON decodes a 4-tuple. Body is kept as raw JSON.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var parts []RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(parts) != 4 {
		return fmt.Errorf("%w: want 4 elements, got %d", ErrMalformedEnvelope, len(parts))
	}

	var out Envelope
	if err := json.Unmarshal(parts[0], &out.Version); err != nil {
		return fmt.Errorf("%w: version: %v", ErrMalformedEnvelope, err)
	}
	if err := json.Unmarshal(parts[1], &out.Opcode); err != nil {
		return fmt.Errorf("%w: opcode: %v", ErrMalformedEnvelope, err)
	}

	var id *string
	if err := json.Unmarshal(parts[2], &id); err != nil {
		return fmt.Errorf("%w: id: %v", ErrMalformedEnvelope, err)
	}
	if id != nil {
		out.ID = *id
	}
	out.Body = RawMessage(parts[3])

	*e = out
	return nil
}

// RawMessage is a raw encoded JSON value.
type RawMessage = stdjson.RawMessage

// Marshal encodes v with the package codec.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent encodes v with two-space indentation.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Unmarshal decodes data into v with the package codec.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
