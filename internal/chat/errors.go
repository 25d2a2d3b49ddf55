package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrSendRejected is wrapped by every precondition failure of Send.
	ErrSendRejected = errors.New("send rejected")

	ErrEmptyAuthor  = fmt.Errorf("%w: author is required", ErrSendRejected)
	ErrEmptyBody    = fmt.Errorf("%w: message is required", ErrSendRejected)
	ErrNotConnected = fmt.Errorf("%w: not connected", ErrSendRejected)

	ErrAlreadyStarted = errors.New("connection already started")
	ErrStopped        = errors.New("connection stopped while connecting")
)

// ConnectError reports a failed establishment attempt. The manager is left in StatusFailed.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	if e.Endpoint == "" {
		return "connect: " + e.Err.Error()
	}
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a send that passed its preconditions but failed in transport.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "send: " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }
