package ws

import "github.com/mmuslimabdulj/goat-poker/internal/domain"

// Register adds a client to the hub. It reports false when the hub has
// already shut down.
func (h *Hub) Register(c *Client) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Dispatch queues a frame read from c
func (h *Hub) Dispatch(c *Client, f domain.Frame) {
	select {
	case h.inbound <- inbound{client: c, frame: f}:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PresenceCount returns the number of distinct presence keys
func (h *Hub) PresenceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.presence)
}

// Channel returns the channel name served by this hub
func (h *Hub) Channel() string {
	return h.channel
}
