package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/channel"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type mockChannel struct {
	mock.Mock

	tapConnect func()

	mu        sync.Mutex
	handlers  map[string]channel.Handler
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newMockChannel() *mockChannel {
	return &mockChannel{
		handlers: make(map[string]channel.Handler),
		closed:   make(chan struct{}),
	}
}

func (c *mockChannel) Connect(ctx context.Context) error {
	if c.tapConnect != nil {
		c.tapConnect()
	}
	args := c.Called(ctx)
	return args.Error(0)
}

func (c *mockChannel) On(target string, h channel.Handler) func() {
	c.mu.Lock()
	c.handlers[target] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, target)
		c.mu.Unlock()
	}
}

func (c *mockChannel) Invoke(ctx context.Context, target string, args ...any) error {
	called := c.Called(append([]any{ctx, target}, args...)...)
	return called.Error(0)
}

func (c *mockChannel) Disconnect() error {
	c.Called()
	c.drop(channel.ErrTerminated)
	return nil
}

func (c *mockChannel) Closed() <-chan struct{} {
	return c.closed
}

func (c *mockChannel) CloseErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// drop simulates the channel closing on its own.
func (c *mockChannel) drop(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = reason
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *mockChannel) handler(target string) channel.Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[target]
}

// emit delivers an inbound event the way a transport reader would.
func (c *mockChannel) emit(t *testing.T, target string, values ...any) {
	t.Helper()
	h := c.handler(target)
	require.NotNil(t, h, "no handler for %s", target)
	args, err := proto.NewArgs(values...)
	require.NoError(t, err)
	h(args)
}

// connectable returns a channel whose Connect succeeds.
func connectable() *mockChannel {
	ch := newMockChannel()
	ch.Mock.On("Connect", mock.Anything).Return(nil)
	ch.Mock.On("Disconnect").Return().Maybe()
	return ch
}

func failing(err error) *mockChannel {
	ch := newMockChannel()
	ch.Mock.On("Connect", mock.Anything).Return(err)
	ch.Mock.On("Disconnect").Return().Maybe()
	return ch
}

// sequence hands out chs in order, one per start cycle.
func sequence(t *testing.T, chs ...*mockChannel) channel.Factory {
	t.Helper()
	var mu sync.Mutex
	next := 0
	return func() channel.Channel {
		mu.Lock()
		defer mu.Unlock()
		require.Less(t, next, len(chs), "factory exhausted")
		ch := chs[next]
		next++
		return ch
	}
}

var fixedNow = time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)

func newTestManager(t *testing.T, factory channel.Factory, store *Store, opts ...ManagerOption) *Manager {
	t.Helper()
	logger := zerolog.Nop()
	opts = append([]ManagerOption{
		WithEndpoint("ws://relay.test/chatHub"),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewManager(factory, store, &logger, opts...)
}

type statusRecorder struct {
	mu   sync.Mutex
	seen []Status
}

func recordStatus(m *Manager) *statusRecorder {
	r := &statusRecorder{}
	m.OnStatus(func(s Status) {
		r.mu.Lock()
		r.seen = append(r.seen, s)
		r.mu.Unlock()
	})
	return r
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.seen...)
}

func waitForLen(t *testing.T, s *Store, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Len() == n }, 2*time.Second, 5*time.Millisecond)
}
