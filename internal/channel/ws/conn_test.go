package ws

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/channel"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/relay"
)

func startRelay(t *testing.T) (string, func()) {
	t.Helper()

	logger := zerolog.Nop()
	hub := relay.NewHub(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(relay.NewServer(hub, config.RelayConfig{}, &logger).Handler)
	var once sync.Once
	// Hijacked WebSocket connections outlive ts.Close; stopping the hub ends them.
	stop := func() {
		once.Do(func() {
			cancel()
			ts.Close()
		})
	}
	t.Cleanup(stop)

	return strings.Replace(ts.URL, "http", "ws", 1) + relay.HubPath, stop
}

func newConn(t *testing.T, endpoint string, opts ...channel.DescriptorOption) *Conn {
	t.Helper()

	desc, err := channel.NewDescriptor(endpoint, opts...)
	require.NoError(t, err)
	logger := zerolog.Nop()
	c := New(desc, &logger)
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

type received struct {
	mu   sync.Mutex
	msgs [][2]string
}

func (r *received) handler(t *testing.T) channel.Handler {
	return func(args proto.Args) {
		author, err := args.String(0)
		require.NoError(t, err)
		body, err := args.String(1)
		require.NoError(t, err)
		r.mu.Lock()
		r.msgs = append(r.msgs, [2]string{author, body})
		r.mu.Unlock()
	}
}

func (r *received) all() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]string(nil), r.msgs...)
}

func TestInvokeIsEchoedToAllConnections(t *testing.T) {
	endpoint, _ := startRelay(t)
	ctx := context.Background()

	alice := newConn(t, endpoint)
	bob := newConn(t, endpoint)
	var aliceGot, bobGot received
	alice.On(proto.TargetReceiveMessage, aliceGot.handler(t))
	bob.On(proto.TargetReceiveMessage, bobGot.handler(t))

	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, bob.Connect(ctx))
	time.Sleep(100 * time.Millisecond) // let the relay register both

	require.NoError(t, alice.Invoke(ctx, proto.TargetSendMessage, "alice", "hi"))

	want := [][2]string{{"alice", "hi"}}
	require.Eventually(t, func() bool { return len(aliceGot.all()) == 1 && len(bobGot.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, want, aliceGot.all())
	require.Equal(t, want, bobGot.all())
}

func TestInvokeRejectedByRelay(t *testing.T) {
	endpoint, _ := startRelay(t)
	c := newConn(t, endpoint)
	require.NoError(t, c.Connect(context.Background()))

	err := c.Invoke(context.Background(), "Nope", "x")
	var invErr *channel.InvocationError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, proto.ErrCodeUnknownTarget, invErr.Code)
	require.ErrorIs(t, err, channel.ErrInvocationFailed)
}

func TestOffStopsDelivery(t *testing.T) {
	endpoint, _ := startRelay(t)
	ctx := context.Background()
	c := newConn(t, endpoint)

	var got received
	off := c.On(proto.TargetReceiveMessage, got.handler(t))
	require.NoError(t, c.Connect(ctx))
	off()
	off()

	require.NoError(t, c.Invoke(ctx, proto.TargetSendMessage, "alice", "hi"))
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, got.all())
}

func TestConnectToUnreachableEndpoint(t *testing.T) {
	c := newConn(t, "ws://127.0.0.1:1/chatHub", channel.WithDialTimeout(time.Second))

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, channel.ErrCannotConnect)

	require.ErrorIs(t, c.Invoke(context.Background(), proto.TargetSendMessage, "a", "b"), channel.ErrNotConnected)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	endpoint, _ := startRelay(t)
	c := newConn(t, endpoint)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())

	select {
	case <-c.Closed():
	case <-time.After(time.Second):
		t.Fatal("Closed not signalled")
	}
	require.ErrorIs(t, c.CloseErr(), channel.ErrTerminated)
	require.ErrorIs(t, c.Connect(context.Background()), channel.ErrTerminated)
	require.ErrorIs(t, c.Invoke(context.Background(), proto.TargetSendMessage, "a", "b"), channel.ErrNotConnected)
}

func TestRelayShutdownClosesChannel(t *testing.T) {
	endpoint, stop := startRelay(t)
	c := newConn(t, endpoint)
	require.NoError(t, c.Connect(context.Background()))

	stop()

	select {
	case <-c.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("Closed not signalled")
	}
	require.ErrorIs(t, c.CloseErr(), channel.ErrConnectionClosed)
}

func TestDisconnectAbortsPendingDial(t *testing.T) {
	// Accepts TCP but never answers the upgrade, so the dial hangs.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	c := newConn(t, "ws://"+ln.Addr().String()+relay.HubPath, channel.WithDialTimeout(time.Minute))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Disconnect())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, channel.ErrTerminated)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect still blocked after Disconnect")
	}
}
