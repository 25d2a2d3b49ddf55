package chat

import (
	"context"
	"strings"
	"sync"
)

// Sender is the part of Manager the composer needs.
type Sender interface {
	Send(ctx context.Context, author, body string) error
}

// Composer holds the author name and the unsent draft behind the input line.
type Composer struct {
	sender Sender

	mu     sync.Mutex
	author string
	draft  string
}

func NewComposer(sender Sender) *Composer {
	return &Composer{sender: sender}
}

func (c *Composer) SetAuthor(author string) {
	c.mu.Lock()
	c.author = author
	c.mu.Unlock()
}

func (c *Composer) Author() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.author
}

func (c *Composer) SetDraft(draft string) {
	c.mu.Lock()
	c.draft = draft
	c.mu.Unlock()
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Ready reports whether a submit could go through: connected and neither field blank.
func (c *Composer) Ready(connected bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return connected && strings.TrimSpace(c.author) != "" && strings.TrimSpace(c.draft) != ""
}

// Submit sends the draft under the current author. The draft is cleared only when the
// send succeeded, so a rejected or failed message can be retried.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	author, draft := c.author, c.draft
	c.mu.Unlock()

	if err := c.sender.Send(ctx, author, draft); err != nil {
		return err
	}

	c.mu.Lock()
	if c.draft == draft {
		c.draft = ""
	}
	c.mu.Unlock()
	return nil
}
