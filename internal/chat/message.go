// Package chat holds the client core: connection lifecycle, the arrival-ordered
// message store, and the input buffer behind the view.
package chat

import (
	"strings"
	"time"
)

// Message is an immutable chat record.
type Message struct {
	Author     string
	Body       string
	ReceivedAt time.Time
}

// NewMessage builds a Message. Author and body are kept as given but must not be blank.
func NewMessage(author, body string, receivedAt time.Time) (Message, error) {
	if strings.TrimSpace(author) == "" {
		return Message{}, ErrEmptyAuthor
	}
	if strings.TrimSpace(body) == "" {
		return Message{}, ErrEmptyBody
	}
	return Message{Author: author, Body: body, ReceivedAt: receivedAt}, nil
}
