// Package ws implements channel.Channel over a WebSocket carrying JSON frames.
package ws

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/channel"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type state int

const (
	stateIdle state = iota
	stateDialing
	stateOpen
	stateClosed
)

type handlerEntry struct {
	id uint64
	fn channel.Handler
}

// Conn is a single WebSocket connection to the relay. A Conn is good for one
// connection lifetime: once closed it cannot be reopened.
type Conn struct {
	desc channel.Descriptor
	log  zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	state    state
	handlers map[string][]handlerEntry
	nextID   uint64
	pending  map[string]chan *proto.Error
	cancel   context.CancelFunc
	// dialCancel aborts an in-flight dial when Disconnect races Connect.
	dialCancel context.CancelFunc

	closeC      chan struct{}
	closeOnce   sync.Once
	closeReason error
}

// New builds an unconnected Conn for desc.
func New(desc channel.Descriptor, logger *zerolog.Logger) *Conn {
	return &Conn{
		desc:     desc,
		log:      logger.With().Str("component", "ws_channel").Str("endpoint", desc.Endpoint()).Logger(),
		handlers: make(map[string][]handlerEntry),
		pending:  make(map[string]chan *proto.Error),
		closeC:   make(chan struct{}),
	}
}

// NewFactory returns a channel.Factory producing a fresh Conn per call.
func NewFactory(desc channel.Descriptor, logger *zerolog.Logger) channel.Factory {
	return func() channel.Channel {
		return New(desc, logger)
	}
}

// Connect dials the relay and starts the reader goroutine.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateDialing, stateOpen:
		c.mu.Unlock()
		return channel.ErrAlreadyConnected
	case stateClosed:
		c.mu.Unlock()
		return channel.ErrTerminated
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.desc.DialTimeout())
	defer cancel()
	c.state = stateDialing
	c.dialCancel = cancel
	c.mu.Unlock()

	header := c.desc.Header()
	header.Set(proto.HeaderProtocol, strconv.Itoa(proto.ProtocolVersion))

	conn, resp, err := websocket.Dial(dialCtx, c.desc.Endpoint(), &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		c.mu.Lock()
		c.dialCancel = nil
		if c.state == stateClosed {
			c.mu.Unlock()
			return channel.ErrTerminated
		}
		c.state = stateIdle
		c.mu.Unlock()

		err = dialError(resp, err)
		c.log.Error().Err(err).Msg("dial relay")
		return err
	}
	conn.SetReadLimit(c.desc.ReadLimit())

	c.mu.Lock()
	c.dialCancel = nil
	if c.state == stateClosed {
		// Disconnect won the race against the dial.
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return channel.ErrTerminated
	}
	readCtx, readCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = readCancel
	c.state = stateOpen
	c.mu.Unlock()

	c.log.Debug().Msg("connected")
	go c.read(readCtx, conn)

	return nil
}

// On registers h for target. Handlers for the same target run in registration order.
func (c *Conn) On(target string, h channel.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.handlers[target] = append(c.handlers[target], handlerEntry{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entries := c.handlers[target]
			for i, e := range entries {
				if e.id == id {
					c.handlers[target] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			if len(c.handlers[target]) == 0 {
				delete(c.handlers, target)
			}
		})
	}
}

// Invoke sends target(args...) and blocks until the relay completes it.
func (c *Conn) Invoke(ctx context.Context, target string, args ...any) error {
	payload, err := proto.NewArgs(args...)
	if err != nil {
		return errors.Wrap(err, "encode args")
	}

	c.mu.Lock()
	if c.state != stateOpen {
		c.mu.Unlock()
		return channel.ErrNotConnected
	}
	conn := c.conn
	id := uuid.NewString()
	done := make(chan *proto.Error, 1)
	c.pending[id] = done
	c.mu.Unlock()
	defer c.forget(id)

	ctx, cancel := context.WithTimeout(ctx, c.desc.InvokeTimeout())
	defer cancel()

	c.log.Debug().Str("id", id).Str("target", target).Msg("=> [INVOKE]")
	if err := wsjson.Write(ctx, conn, proto.Invoke(id, target, payload)); err != nil {
		return errors.Wrapf(err, "write %s", target)
	}

	select {
	case perr := <-done:
		if perr != nil {
			return &channel.InvocationError{Target: target, Code: perr.Code, Msg: perr.Msg}
		}
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "await %s completion", target)
	case <-c.closeC:
		return errors.Wrapf(channel.ErrConnectionClosed, "await %s completion", target)
	}
}

// Disconnect closes the connection. Subsequent calls are no-ops.
func (c *Conn) Disconnect() error {
	c.close(channel.ErrTerminated)
	return nil
}

// Closed is closed once the connection has stopped.
func (c *Conn) Closed() <-chan struct{} {
	return c.closeC
}

// CloseErr returns why the connection stopped, or nil while it is still usable.
func (c *Conn) CloseErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

func (c *Conn) read(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			c.close(readCloseReason(ctx, err))
			return
		}

		switch frame.Type {
		case proto.FrameTypeEvent:
			c.log.Debug().Str("target", frame.Target).Msg("<= [EVENT]")
			c.dispatch(frame)
		case proto.FrameTypeCompletion:
			c.log.Debug().Str("id", frame.ID).Msg("<= [COMPLETION]")
			c.complete(frame)
		default:
			c.log.Warn().Str("type", frame.Type).Msg("unexpected frame type")
		}
	}
}

func (c *Conn) dispatch(frame proto.Frame) {
	c.mu.Lock()
	entries := append([]handlerEntry(nil), c.handlers[frame.Target]...)
	c.mu.Unlock()

	if len(entries) == 0 {
		c.log.Debug().Str("target", frame.Target).Msg("no handler for event")
		return
	}
	for _, e := range entries {
		e.fn(frame.Args)
	}
}

func (c *Conn) complete(frame proto.Frame) {
	c.mu.Lock()
	done, ok := c.pending[frame.ID]
	delete(c.pending, frame.ID)
	c.mu.Unlock()

	if !ok {
		c.log.Debug().Str("id", frame.ID).Msg("completion for unknown invocation")
		return
	}
	done <- frame.Error
}

func (c *Conn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) close(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		c.closeReason = reason
		conn := c.conn
		cancel := c.cancel
		dialCancel := c.dialCancel
		c.mu.Unlock()

		if dialCancel != nil {
			dialCancel()
		}
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
		}
		if cancel != nil {
			cancel()
		}
		close(c.closeC)

		if errors.Is(reason, channel.ErrTerminated) {
			c.log.Debug().Msg("disconnected")
		} else {
			c.log.Warn().Err(reason).Msg("connection closed")
		}
	})
}

func readCloseReason(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return channel.ErrTerminated
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return errors.Wrap(channel.ErrConnectionClosed, "closed by relay")
	}
	return errors.Wrap(channel.ErrConnectionClosed, "read: "+err.Error())
}

func dialError(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		return errors.Wrapf(channel.ErrCannotConnect, "%s (status %d)", err, resp.StatusCode)
	}
	return errors.Wrap(channel.ErrCannotConnect, err.Error())
}
