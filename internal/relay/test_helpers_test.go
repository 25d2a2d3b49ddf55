package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func startTestRelay(t *testing.T, rateLimit int) string {
	t.Helper()

	logger := zerolog.Nop()
	hub := NewHub(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(NewServer(hub, config.RelayConfig{RateLimit: rateLimit}, &logger).Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return strings.Replace(ts.URL, "http", "ws", 1) + HubPath
}

func dialRelay(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func invoke(t *testing.T, ctx context.Context, conn *websocket.Conn, id, target string, values ...any) {
	t.Helper()

	args, err := proto.NewArgs(values...)
	if err != nil {
		t.Fatalf("encode args: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Invoke(id, target, args)); err != nil {
		t.Fatalf("write invoke: %v", err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Frame {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var frame proto.Frame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

// mustFrame reads until a frame of the given type arrives.
func mustFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string) proto.Frame {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("expected %s frame, read failed: %v", frameType, err)
		}
		if frame.Type == frameType {
			return frame
		}
	}
}
