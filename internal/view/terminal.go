// Package view renders the chat room to a terminal. It only reads from the core:
// the message store, the connection status and the current author.
package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-client/internal/chat"
)

const (
	defaultHistory = 20
	timeLayout     = "15:04:05"
	clearScreen    = "\033[H\033[2J"
)

var (
	styleOwn   = color.New(color.FgCyan, color.OpBold)
	styleOther = color.New(color.FgWhite)
	styleTime  = color.New(color.FgGray)

	statusStyles = map[chat.Status]color.Style{
		chat.StatusDisconnected: color.New(color.FgGray),
		chat.StatusConnecting:   color.New(color.FgYellow),
		chat.StatusConnected:    color.New(color.FgGreen, color.OpBold),
		chat.StatusFailed:       color.New(color.FgRed, color.OpBold),
	}
)

// StatusSource is the part of chat.Manager the view reads.
type StatusSource interface {
	Status() chat.Status
	OnStatus(fn func(chat.Status)) func()
}

type Option func(*Terminal)

// WithHistory limits the rendered window to the newest n messages.
func WithHistory(n int) Option {
	return func(t *Terminal) {
		if n > 0 {
			t.history = n
		}
	}
}

// WithSelf tells the view which author is the local user.
func WithSelf(author func() string) Option {
	return func(t *Terminal) { t.self = author }
}

// Plain disables colors and screen clearing.
func Plain() Option {
	return func(t *Terminal) { t.plain = true }
}

// Terminal redraws the whole room on every change.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	history int
	plain   bool
	self    func() string
}

func NewTerminal(out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		out:     out,
		history: defaultHistory,
		self:    func() string { return "" },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Render writes one frame: status header, the newest messages oldest first, and the input hint.
func (t *Terminal) Render(status chat.Status, messages []chat.Message) {
	self := t.self()
	start := max(0, len(messages)-t.history)
	lines := lo.Map(messages[start:], func(m chat.Message, _ int) string {
		return t.line(m, m.Author == self)
	})

	var b strings.Builder
	if !t.plain {
		b.WriteString(clearScreen)
	}
	fmt.Fprintf(&b, "wirechat %s\n", t.paint(statusStyles[status], "["+status.String()+"]"))
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if status == chat.StatusConnected {
		b.WriteString("> ")
	} else {
		fmt.Fprintf(&b, "(input disabled while %s)\n", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, b.String())
}

func (t *Terminal) line(m chat.Message, own bool) string {
	ts := t.paint(styleTime, m.ReceivedAt.Format(timeLayout))
	if own {
		return fmt.Sprintf("%s * %s: %s", ts, t.paint(styleOwn, m.Author), t.paint(styleOwn, m.Body))
	}
	return fmt.Sprintf("%s   %s: %s", ts, t.paint(styleOther, m.Author), m.Body)
}

func (t *Terminal) paint(style color.Style, s string) string {
	if t.plain {
		return s
	}
	return style.Render(s)
}

// Bind redraws on every store append and every status change until the returned func is called.
func (t *Terminal) Bind(store *chat.Store, status StatusSource) func() {
	redraw := func() { t.Render(status.Status(), store.All()) }

	cancelStore := store.Subscribe(func(chat.Message) { redraw() })
	cancelStatus := status.OnStatus(func(s chat.Status) { t.Render(s, store.All()) })
	redraw()

	return func() {
		cancelStore()
		cancelStatus()
	}
}
