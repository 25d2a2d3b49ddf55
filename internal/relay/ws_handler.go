package relay

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the hub.
type WSHandler struct {
	hub       *Hub
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. rateLimit caps invocations per connection
// per minute; 0 disables it.
func NewWSHandler(hub *Hub, rateLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, rateLimit: rateLimit, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if v := r.Header.Get(proto.HeaderProtocol); v != "" && v != strconv.Itoa(proto.ProtocolVersion) {
		h.log.Debug().Str("protocol", v).Msg("unsupported protocol version")
		stdhttp.Error(w, "unsupported protocol version", stdhttp.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := NewClient(uuid.NewString())
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	h.log.Info().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("client connected")
	defer func() {
		h.log.Info().Str("client_id", client.ID).Msg("client disconnected")
	}()

	limiter := newRateLimiter(h.rateLimit, time.Minute)
	stopReset := make(chan struct{})
	limiter.startReset(stopReset)
	defer close(stopReset)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client, limiter *rateLimiter) error {
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}

		if frame.Type != proto.FrameTypeInvoke {
			h.log.Debug().Str("client_id", client.ID).Str("type", frame.Type).Msg("ignoring non-invoke frame")
			continue
		}

		protoErr := h.invoke(client, frame, limiter)
		if err := wsjson.Write(ctx, conn, proto.Completion(frame.ID, protoErr)); err != nil {
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("write completion")
			return err
		}
	}
}

func (h *WSHandler) invoke(client *Client, frame proto.Frame, limiter *rateLimiter) *proto.Error {
	if !limiter.allow() {
		return &proto.Error{Code: proto.ErrCodeRateLimited, Msg: "too many messages"}
	}

	switch frame.Target {
	case proto.TargetSendMessage:
		author, authorErr := frame.Args.String(0)
		body, bodyErr := frame.Args.String(1)
		if authorErr != nil || bodyErr != nil {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "expected (author, body) strings"}
		}
		author, body = strings.TrimSpace(author), strings.TrimSpace(body)
		if author == "" || body == "" {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "author and body are required"}
		}

		args, err := proto.NewArgs(author, body)
		if err != nil {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: err.Error()}
		}
		if !h.hub.Broadcast(proto.Event(proto.TargetReceiveMessage, args)) {
			return &proto.Error{Code: proto.ErrCodeUnavailable, Msg: "relay shutting down"}
		}
		h.log.Debug().Str("client_id", client.ID).Str("author", author).Msg("message relayed")
		return nil
	default:
		return &proto.Error{Code: proto.ErrCodeUnknownTarget, Msg: "unknown target " + frame.Target}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		select {
		case frame, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
