// Package events fans committed workflow transitions out to websocket
// clients, relayed through Redis so every instance sees every event.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/rs/zerolog"
)

// Hub keeps the set of connected clients of this instance.
type Hub struct {
	log        zerolog.Logger
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log.With().Str("component", "events").Logger(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug().Str("client", c.id).Msg("client connected")
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("client", c.id).Msg("client disconnected")
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients reports how many clients are connected to this instance.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an encoded message for every local client. It drops the
// message when the queue is full.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Msg("broadcast queue full, dropping event")
	}
}

// Publish delivers ev to the clients of this instance only.
func (h *Hub) Publish(_ context.Context, ev workflow.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("encode event")
		return
	}
	h.Broadcast(b)
}

var _ workflow.Publisher = (*Hub)(nil)
