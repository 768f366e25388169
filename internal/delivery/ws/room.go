package ws

import (
	"sync"
	"time"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/rs/zerolog/log"
)

// Room is one live channel with its own hub
type Room struct {
	Channel string
	Hub     *Hub
}

// RoomManager manages all active channels. Channels are created on first
// subscribe and destroyed after staying empty for the grace period.
type RoomManager struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	gracePeriod time.Duration
}

// NewRoomManager creates a new room manager
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:       make(map[string]*Room),
		gracePeriod: domain.ShutdownGracePeriod,
	}
}

// SetGracePeriod sets how long empty channels are kept
func (rm *RoomManager) SetGracePeriod(d time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.gracePeriod = d
}

// GetOrCreateRoom returns the room for channel, starting a hub if needed
func (rm *RoomManager) GetOrCreateRoom(channel string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[channel]; ok {
		return room
	}

	hub := NewHub()
	hub.roomManager = rm
	hub.channel = channel
	hub.gracePeriod = rm.gracePeriod

	room := &Room{
		Channel: channel,
		Hub:     hub,
	}
	rm.rooms[channel] = room
	go hub.Run()

	log.Info().Str("channel", channel).Msg("channel created")
	return room
}

// GetRoom returns a room by its channel name
func (rm *RoomManager) GetRoom(channel string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[channel]
}

// DeleteRoom removes a room and stops its hub
func (rm *RoomManager) DeleteRoom(channel string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, exists := rm.rooms[channel]; exists {
		delete(rm.rooms, channel)
		room.Hub.stop()
	}
}

// deleteIfIdle removes the room only if hub still serves it and is empty
func (rm *RoomManager) deleteIfIdle(channel string, hub *Hub) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[channel]
	if !ok || room.Hub != hub {
		return
	}
	if hub.ClientCount() > 0 {
		return
	}
	delete(rm.rooms, channel)
	hub.stop()
	log.Info().Str("channel", channel).Msg("channel destroyed after grace period")
}

// RoomExists checks if a room exists
func (rm *RoomManager) RoomExists(channel string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, exists := rm.rooms[channel]
	return exists
}

// GetRoomCount returns the number of active rooms
func (rm *RoomManager) GetRoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Online returns the number of distinct participants present on channel
func (rm *RoomManager) Online(channel string) int {
	room := rm.GetRoom(channel)
	if room == nil {
		return 0
	}
	return room.Hub.PresenceCount()
}

// stop ends the Run loop once
func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.quit:
	default:
		h.cancelShutdown()
		close(h.quit)
	}
}
