package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/rs/zerolog/log"
)

// presenceRecord is one tracked record; ref is the owning client's ID
type presenceRecord struct {
	ref  string
	meta json.RawMessage
}

// inbound is a frame read from a client, queued for the hub loop
type inbound struct {
	client *Client
	frame  domain.Frame
}

// Hub owns one channel: its subscribers, their presence records and the
// broadcast fan-out. All state changes happen on the Run goroutine.
type Hub struct {
	mu          sync.RWMutex
	gracePeriod time.Duration

	clients  map[string]*Client
	presence map[string][]presenceRecord // presence key -> records in track order

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	quit       chan struct{}

	roomManager   *RoomManager
	channel       string
	shutdownTimer *time.Timer
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		gracePeriod: domain.ShutdownGracePeriod,
		clients:     make(map[string]*Client),
		presence:    make(map[string][]presenceRecord),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan inbound, 256),
		quit:        make(chan struct{}),
	}
}

// cancelShutdown stops pending destroy timer
func (h *Hub) cancelShutdown() {
	if h.shutdownTimer != nil {
		h.shutdownTimer.Stop()
		h.shutdownTimer = nil
	}
}

// scheduleShutdown starts the grace period timer
func (h *Hub) scheduleShutdown() {
	if h.roomManager == nil || h.channel == "" {
		return
	}
	h.shutdownTimer = time.AfterFunc(h.gracePeriod, func() {
		h.roomManager.deleteIfIdle(h.channel, h)
	})
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.cancelShutdown()
			h.clients[client.ID] = client

			client.Send(h.buildFrame(domain.Frame{Type: domain.FrameSubscribed, Ref: client.ID}))
			client.Send(h.buildPresenceSync())
			count := len(h.clients)
			h.mu.Unlock()

			log.Debug().
				Str("channel", h.channel).
				Str("client_id", client.ID).
				Str("presence_key", client.Key).
				Int("clients", count).
				Msg("client subscribed")

		case client := <-h.unregister:
			h.mu.Lock()
			// Prevent double unregister
			if _, ok := h.clients[client.ID]; !ok {
				h.mu.Unlock()
				continue
			}
			h.removeClientLocked(client)
			count := len(h.clients)
			if count == 0 {
				h.scheduleShutdown()
			}
			h.mu.Unlock()

			log.Debug().
				Str("channel", h.channel).
				Str("client_id", client.ID).
				Int("clients", count).
				Msg("client unsubscribed")

		case in := <-h.inbound:
			h.mu.Lock()
			if _, ok := h.clients[in.client.ID]; ok {
				h.handleFrameLocked(in.client, in.frame)
			}
			h.mu.Unlock()
		}
	}
}

// handleFrameLocked applies one client frame. Caller holds h.mu.
func (h *Hub) handleFrameLocked(c *Client, f domain.Frame) {
	switch f.Type {
	case domain.FrameTrack:
		if len(f.Payload) == 0 {
			return
		}
		h.upsertPresenceLocked(c, f.Payload)
		h.fanOutLocked(h.buildPresenceSync(), "")

	case domain.FrameUntrack:
		if h.untrackLocked(c) {
			h.fanOutLocked(h.buildPresenceSync(), "")
		}

	case domain.FrameBroadcast:
		if f.Event == "" {
			return
		}
		data := h.buildFrame(domain.Frame{
			Type:    domain.FrameBroadcast,
			Event:   f.Event,
			Payload: f.Payload,
		})
		h.fanOutLocked(data, c.ID)

	default:
		c.Send(h.buildFrame(domain.Frame{
			Type:    domain.FrameError,
			Payload: json.RawMessage(`"unsupported frame type"`),
		}))
	}
}

func (h *Hub) upsertPresenceLocked(c *Client, meta json.RawMessage) {
	records := h.presence[c.Key]
	for i := range records {
		if records[i].ref == c.ID {
			records[i].meta = meta
			return
		}
	}
	h.presence[c.Key] = append(records, presenceRecord{ref: c.ID, meta: meta})
}

func (h *Hub) untrackLocked(c *Client) bool {
	records := h.presence[c.Key]
	for i := range records {
		if records[i].ref == c.ID {
			records = append(records[:i], records[i+1:]...)
			if len(records) == 0 {
				delete(h.presence, c.Key)
			} else {
				h.presence[c.Key] = records
			}
			return true
		}
	}
	return false
}

// removeClientLocked drops a client and its presence, then tells the others
func (h *Hub) removeClientLocked(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	if h.untrackLocked(c) {
		h.fanOutLocked(h.buildPresenceSync(), "")
	}
}

// fanOutLocked sends data to every client except skipID. Clients whose
// buffer is full are dropped.
func (h *Hub) fanOutLocked(data []byte, skipID string) {
	var slow []*Client
	for id, c := range h.clients {
		if id == skipID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		log.Warn().Str("channel", h.channel).Str("client_id", c.ID).Msg("client buffer full, dropping")
		h.removeClientLocked(c)
	}
}
