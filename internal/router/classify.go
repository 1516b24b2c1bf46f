package router

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/rickgao/finex-ws/internal/wire"
)

// eventWire is the object frame header.
type eventWire struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Code    any    `json:"code"`
	Msg     string `json:"msg"`
}

// Classify parses a raw frame into a Message. Role and ReceivedAt are left
// for the caller.
func Classify(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Message{}, ErrUnrecognized
	}

	switch trimmed[0] {
	case '[':
		return classifyArray(trimmed)
	case '{':
		return classifyObject(trimmed)
	default:
		return Message{}, ErrUnrecognized
	}
}

func classifyArray(data []byte) (Message, error) {
	var parts []wire.RawMessage
	if err := wire.Unmarshal(data, &parts); err != nil {
		return Message{}, fmt.Errorf("parse array frame: %w", err)
	}

	if len(parts) != 3 && len(parts) != 4 {
		return Message{}, fmt.Errorf("%w: array of %d elements", ErrUnrecognized, len(parts))
	}

	var msgType string
	if err := wire.Unmarshal(parts[1], &msgType); err != nil || msgType == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrUnrecognized)
	}

	msg := Message{Type: msgType, Raw: data}

	if len(parts) == 3 {
		msg.Kind = KindPush
		msg.Namespace = msgType
		msg.Data = parts[2]
		return msg, nil
	}

	msg.Kind = KindReply
	msg.Data = parts[3]
	msg.Namespace = msgType
	if !isNull(parts[2]) {
		if err := wire.Unmarshal(parts[2], &msg.ID); err != nil {
			return Message{}, fmt.Errorf("%w: non-string id", ErrUnrecognized)
		}
		msg.Namespace = msgType + "-" + msg.ID
	}
	return msg, nil
}

func classifyObject(data []byte) (Message, error) {
	var head eventWire
	if err := wire.Unmarshal(data, &head); err != nil {
		return Message{}, fmt.Errorf("parse event frame: %w", err)
	}
	if head.Event == "" {
		return Message{}, fmt.Errorf("%w: object without event", ErrUnrecognized)
	}

	msg := Message{
		Kind:      KindEvent,
		Event:     head.Event,
		Channel:   head.Channel,
		Code:      parseCode(head.Code),
		Msg:       head.Msg,
		Namespace: "_" + head.Event,
		Data:      data,
		Raw:       data,
	}
	if head.Event == "error" && head.Channel != "" {
		msg.Namespace = "_" + head.Channel
	}
	return msg, nil
}

func isNull(raw wire.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// parseCode accepts numeric or string error codes.
func parseCode(v any) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case string:
		n, _ := strconv.Atoi(c)
		return n
	default:
		return 0
	}
}
