package proto

import (
	"encoding/json"
	"fmt"
)

const (
	ProtocolVersion = 1
	// HeaderProtocol carries ProtocolVersion on the WebSocket upgrade request.
	HeaderProtocol = "Wirechat-Protocol"

	FrameTypeInvoke     = "invoke"
	FrameTypeCompletion = "completion"
	FrameTypeEvent      = "event"

	// TargetSendMessage is invoked by a client to publish a chat message.
	TargetSendMessage = "SendMessage"
	// TargetReceiveMessage is emitted by the relay for every published message.
	TargetReceiveMessage = "ReceiveMessage"

	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnknownTarget = "unknown_target"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeUnavailable   = "unavailable"
)

// Frame is the envelope for every message exchanged with the relay.
type Frame struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Target string `json:"target,omitempty"`
	Args   Args   `json:"args,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error carried by a completion frame.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Msg
}

// Args are the positional arguments of an invocation or event.
type Args []json.RawMessage

// NewArgs marshals values into positional arguments.
func NewArgs(values ...any) (Args, error) {
	args := make(Args, 0, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal arg %d: %w", i, err)
		}
		args = append(args, raw)
	}
	return args, nil
}

// String decodes the i-th argument as a string.
func (a Args) String(i int) (string, error) {
	if i < 0 || i >= len(a) {
		return "", fmt.Errorf("arg %d out of range (have %d)", i, len(a))
	}
	var s string
	if err := json.Unmarshal(a[i], &s); err != nil {
		return "", fmt.Errorf("arg %d: %w", i, err)
	}
	return s, nil
}

// Invoke builds an invocation frame.
func Invoke(id, target string, args Args) Frame {
	return Frame{Type: FrameTypeInvoke, ID: id, Target: target, Args: args}
}

// Completion builds a completion frame; err is nil on success.
func Completion(id string, err *Error) Frame {
	return Frame{Type: FrameTypeCompletion, ID: id, Error: err}
}

// Event builds an event frame.
func Event(target string, args Args) Frame {
	return Frame{Type: FrameTypeEvent, Target: target, Args: args}
}
