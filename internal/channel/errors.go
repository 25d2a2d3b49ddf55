package channel

import (
	"errors"
	"fmt"
)

var (
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrTerminated       = errors.New("connection terminated by client")
	ErrAlreadyConnected = errors.New("channel already connected")
	ErrNotConnected     = errors.New("channel not connected")
	ErrInvalidEndpoint  = errors.New("invalid endpoint")
	ErrInvocationFailed = errors.New("invocation failed")
)

// InvocationError is returned by Invoke when the relay completes an invocation with an error.
type InvocationError struct {
	Target string
	Code   string
	Msg    string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %s: %s", e.Target, e.Code, e.Msg)
}

func (e *InvocationError) Unwrap() error { return ErrInvocationFailed }
