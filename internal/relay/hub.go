// Package relay is a single-room development relay: every SendMessage invocation is
// rebroadcast as a ReceiveMessage event to all connected clients, the sender included.
package relay

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const clientBuffer = 64

// Client is a relay participant.
type Client struct {
	ID     string
	Events chan proto.Frame
}

// NewClient constructs a client with an initialized event queue.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan proto.Frame, clientBuffer),
	}
}

// Hub serializes registration and broadcast through a single loop so every client
// observes events in the same order.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan proto.Frame
	done       chan struct{}
	clients    map[*Client]struct{}
	log        zerolog.Logger
}

// NewHub creates a hub; call Run to start it.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan proto.Frame),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		log:        logger.With().Str("component", "relay_hub").Logger(),
	}
}

// Run processes hub traffic until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for c := range h.clients {
			h.drop(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client registered")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client unregistered")
			}
		case frame := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.Events <- frame:
				default:
					h.log.Warn().Str("client_id", c.ID).Msg("dropping slow client")
					h.drop(c)
				}
			}
		}
	}
}

// RegisterClient adds c to the room.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Events)
	}
}

// UnregisterClient removes c and closes its event queue.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues frame for every client. It returns false once the hub has stopped.
func (h *Hub) Broadcast(frame proto.Frame) bool {
	select {
	case h.broadcast <- frame:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.Events)
}
