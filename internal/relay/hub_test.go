package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func mustEvent(t *testing.T, ch <-chan proto.Frame) proto.Frame {
	t.Helper()

	select {
	case frame, ok := <-ch:
		if !ok {
			t.Fatal("event queue closed")
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("expected event not received")
	}
	return proto.Frame{}
}

func TestHubBroadcastPreservesOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	logger := zerolog.Nop()
	hub := NewHub(&logger)
	go hub.Run(ctx)

	alice := NewClient("a")
	bob := NewClient("b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	for i := 0; i < 5; i++ {
		if !hub.Broadcast(proto.Frame{Type: proto.FrameTypeEvent, Target: fmt.Sprint(i)}) {
			t.Fatalf("broadcast %d rejected", i)
		}
	}

	for _, c := range []*Client{alice, bob} {
		for i := 0; i < 5; i++ {
			if got := mustEvent(t, c.Events); got.Target != fmt.Sprint(i) {
				t.Fatalf("client %s: expected target %d, got %q", c.ID, i, got.Target)
			}
		}
	}
}

func TestHubUnregisterClosesQueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	logger := zerolog.Nop()
	hub := NewHub(&logger)
	go hub.Run(ctx)

	alice := NewClient("a")
	hub.RegisterClient(alice)
	hub.UnregisterClient(alice)
	// Unregistering twice must not panic on a closed queue.
	hub.UnregisterClient(alice)

	select {
	case _, ok := <-alice.Events:
		if ok {
			t.Fatal("expected closed queue")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queue not closed")
	}
}

func TestHubStopsAcceptingAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	logger := zerolog.Nop()
	hub := NewHub(&logger)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	<-stopped

	if hub.Broadcast(proto.Event(proto.TargetReceiveMessage, nil)) {
		t.Fatal("broadcast should be rejected after shutdown")
	}
}

func TestInvokeAfterShutdownIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := zerolog.Nop()
	hub := NewHub(&logger)
	hub.Run(ctx)

	args, err := proto.NewArgs("bob", "hi")
	if err != nil {
		t.Fatalf("encode args: %v", err)
	}
	h := &WSHandler{hub: hub, log: &logger}
	perr := h.invoke(NewClient("c1"), proto.Invoke("1", proto.TargetSendMessage, args), newRateLimiter(0, time.Minute))
	if perr == nil || perr.Code != proto.ErrCodeUnavailable {
		t.Fatalf("expected %s, got %+v", proto.ErrCodeUnavailable, perr)
	}
}
