// Package channel defines the bidirectional named-event channel the chat core talks through.
// Implementations live in sub-packages; the core depends only on this capability set.
package channel

import (
	"context"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type (
	// Handler receives the arguments of an inbound event.
	// Handlers registered on one channel are called in delivery order from a single goroutine.
	Handler func(args proto.Args)

	// Channel is a named-event transport to the relay.
	Channel interface {
		// Connect establishes the connection. It returns once the channel is usable or failed.
		Connect(ctx context.Context) error
		// On registers a handler for target and returns a func releasing it.
		On(target string, h Handler) (off func())
		// Invoke sends target(args...) and waits for the relay to acknowledge it.
		Invoke(ctx context.Context, target string, args ...any) error
		// Disconnect closes the channel. Safe to call more than once.
		Disconnect() error
		// Closed is closed once the channel stops, for whatever reason.
		Closed() <-chan struct{}
		// CloseErr explains why the channel closed.
		CloseErr() error
	}

	// Factory produces a fresh, unconnected channel.
	Factory func() Channel
)
