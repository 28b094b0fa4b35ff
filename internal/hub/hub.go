package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub manages viewer clients and broadcasts messages to them. A client's
// send channel is only written under the read lock and only closed under
// the write lock, so a send never races a close.
type Hub struct {
	clients map[*Client]bool
	closed  bool
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.send)
		return
	}
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", "client", c.id, "total", n)
}

// Unregister removes a client from the hub and ends its write pump.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client disconnected", "client", c.id, "total", n)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. Clients whose send buffer is full
// are disconnected.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.logger.Warn("client too slow, disconnecting", "client", client.id)
			go h.Unregister(client)
		}
	}
}

// Send queues msg for one client. It reports false when the client is gone
// or its buffer is full.
func (h *Hub) Send(c *Client, msg *WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "type", msg.Type, "error", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run waits for ctx to end, then disconnects every client and refuses new
// ones.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
