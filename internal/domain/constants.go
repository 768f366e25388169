package domain

import "time"

// ==== Channel Constants ====

// RoomChannelPrefix is prepended to a room code to form its channel name
const RoomChannelPrefix = "room:"

// GameStateEvent is the broadcast event carrying the shared RoomState
const GameStateEvent = "game_state"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket frame size in bytes
const MaxMessageSize = 4096

// ==== Room Code Constants ====

const (
	// DefaultRoomCodeLength is the length of generated room codes
	DefaultRoomCodeLength = 4

	// MinRoomCodeLength is the shortest code accepted on join
	MinRoomCodeLength = 3

	// MaxRoomCodeLength is the longest code accepted on join
	MaxRoomCodeLength = 12
)

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket connections (req/sec)
	DefaultRateLimitWS = 5
)

// ==== Timing Constants ====

const (
	// ShutdownGracePeriod is the time to wait before destroying an empty channel
	ShutdownGracePeriod = 60 * time.Second

	// HeartbeatInterval is how often brokered presence records are refreshed
	HeartbeatInterval = 5 * time.Second

	// PresenceTTL is how long a brokered presence record survives without a heartbeat
	PresenceTTL = 3 * HeartbeatInterval
)
