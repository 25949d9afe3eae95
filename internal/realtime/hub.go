package realtime

import (
	"sync"
)

// Client represents a single websocket client connection.
// We keep it minimal here; the actual network conn is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains active connections per channel and broadcasts frames to them.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[Client]struct{}
}

// NewHub returns an empty hub. One hub per process, passed to whoever needs it.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[Client]struct{})}
}

// Register subscribes a client to a channel.
func (h *Hub) Register(channel string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
}

// Unregister removes a client from a channel; empty channels are dropped.
func (h *Hub) Unregister(channel string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(channel, client)
}

// UnregisterAll removes a client from every channel it joined.
func (h *Hub) UnregisterAll(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.channels {
		h.unregisterLocked(channel, client)
	}
}

func (h *Hub) unregisterLocked(channel string, client Client) {
	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Broadcast sends a message to every client of a channel and returns how
// many accepted it.
func (h *Hub) Broadcast(channel string, message []byte) int {
	h.mu.RLock()
	clients := make([]Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		// a failed send is cleaned up by the connection's own reader loop
		if c.Send(message) {
			sent++
		}
	}
	return sent
}

// Subscribers returns the number of clients on a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
