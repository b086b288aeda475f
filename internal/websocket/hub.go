package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"go-social-feed/internal/event"
)

// Hub fans feed events out to every connected client.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	bus event.Bus
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		bus:        bus,
	}
}

func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			h.drop(client)
		case e, ok := <-events:
			if !ok {
				return
			}
			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					h.drop(client)
				}
			}
		}
	}
}

// Register blocks until the hub accepts c or ctx is done.
func (h *Hub) Register(ctx context.Context, c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) Unregister(ctx context.Context, c *Client) {
	select {
	case h.unregister <- c:
	case <-ctx.Done():
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		h.drop(c)
	}
}
