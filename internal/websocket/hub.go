// Package websocket pushes engine and order events to connected UI
// clients: sync pass results, per-entity retries, order completion.
package websocket

import (
	"encoding/json"
	gosync "sync"

	"github.com/rs/zerolog"
)

// Event is the envelope broadcast to every client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and fans events out to them. It
// implements the EventSink interfaces of the sync engine and the order
// service.
type Hub struct {
	mu      gosync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	log        zerolog.Logger
}

// NewHub creates a Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// Run processes client registration until the channel is closed. Run in
// its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.log.Debug().Str("remote", client.remoteAddr).Msg("ui client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("remote", client.remoteAddr).Msg("ui client disconnected")
		}
	}
}

// Publish broadcasts one event to every connected client. A slow client is
// dropped rather than allowed to stall the engine.
func (h *Hub) Publish(event string, payload any) {
	msg, err := json.Marshal(Event{Type: event, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.log.Warn().Str("remote", client.remoteAddr).Msg("dropping slow ui client")
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}
