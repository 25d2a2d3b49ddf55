package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/channel"
	"github.com/vovakirdan/wirechat-client/internal/channel/ws"
	"github.com/vovakirdan/wirechat-client/internal/chat"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/view"
)

const (
	cmdName      = "/name"
	cmdQuit      = "/quit"
	cmdReconnect = "/reconnect"
)

// Client is the interactive chat client: stdin lines become messages, the room is
// redrawn on out.
type Client struct {
	manager  *chat.Manager
	store    *chat.Store
	composer *chat.Composer
	term     *view.Terminal
	retry    chat.RetryPolicy
	in       io.Reader
	log      *zerolog.Logger
}

// ClientOption customizes the client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	viewOpts []view.Option
}

// WithViewOptions passes extra options to the terminal view.
func WithViewOptions(opts ...view.Option) ClientOption {
	return func(o *clientOptions) { o.viewOpts = append(o.viewOpts, opts...) }
}

// NewClient builds the client for cfg. Nothing is dialed until Run.
func NewClient(cfg config.Config, in io.Reader, out io.Writer, logger *zerolog.Logger, opts ...ClientOption) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	desc, err := channel.NewDescriptor(cfg.Endpoint,
		channel.WithDialTimeout(cfg.DialTimeout),
		channel.WithInvokeTimeout(cfg.InvokeTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}

	store := chat.NewStore()
	manager := chat.NewManager(ws.NewFactory(desc, logger), store, logger, chat.WithEndpoint(desc.Endpoint()))
	composer := chat.NewComposer(manager)
	composer.SetAuthor(cfg.Author)

	viewOpts := append([]view.Option{
		view.WithHistory(cfg.History),
		view.WithSelf(composer.Author),
	}, o.viewOpts...)

	return &Client{
		manager:  manager,
		store:    store,
		composer: composer,
		term:     view.NewTerminal(out, viewOpts...),
		retry: chat.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		},
		in:  in,
		log: logger,
	}, nil
}

// Run connects and processes input until /quit, end of input, or ctx cancellation.
// A failed connection is not fatal: the view shows it and /reconnect starts a new cycle.
func (c *Client) Run(ctx context.Context) error {
	unbind := c.term.Bind(c.store, c.manager)
	defer unbind()
	defer c.manager.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	connect := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.manager.StartWithRetry(ctx, c.retry); err != nil && !errors.Is(err, chat.ErrStopped) {
				c.log.Error().Err(err).Msg("could not connect; type /reconnect to try again")
			}
		}()
	}
	connect()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.log.Warn().Err(err).Msg("read input")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handle(ctx, line, connect); quit {
				return nil
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, line string, connect func()) (quit bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		// An empty line retries the draft kept by a failed send.
		if strings.TrimSpace(c.composer.Draft()) != "" {
			c.submit(ctx)
		}
		return false
	case trimmed == cmdQuit:
		return true
	case trimmed == cmdReconnect:
		if c.manager.Status() == chat.StatusConnected || c.manager.Status() == chat.StatusConnecting {
			c.log.Info().Msg("already connected")
			return false
		}
		connect()
		return false
	case trimmed == cmdName || strings.HasPrefix(trimmed, cmdName+" "):
		c.composer.SetAuthor(strings.TrimSpace(strings.TrimPrefix(trimmed, cmdName)))
		c.redraw()
		return false
	}

	c.composer.SetDraft(line)
	c.submit(ctx)
	return false
}

func (c *Client) submit(ctx context.Context) {
	err := c.composer.Submit(ctx)
	if err == nil {
		return
	}

	var sendErr *chat.SendError
	switch {
	case errors.Is(err, chat.ErrEmptyAuthor):
		c.log.Warn().Msg("set a name first with /name NAME")
	case errors.Is(err, chat.ErrSendRejected):
		c.log.Warn().Err(err).Msg("message not sent; press enter on an empty line to retry")
	case errors.As(err, &sendErr):
		c.log.Error().Err(err).Msg("message not delivered; press enter on an empty line to retry")
	default:
		c.log.Error().Err(err).Msg("send")
	}
}

func (c *Client) redraw() {
	c.term.Render(c.manager.Status(), c.store.All())
}
