package domain

import "encoding/json"

// FrameType defines the kind of relay frame on the websocket
type FrameType string

const (
	// server -> client
	FrameSubscribed   FrameType = "subscribed"
	FramePresenceSync FrameType = "presence_sync"
	FrameError        FrameType = "error"

	// client -> server
	FrameTrack   FrameType = "track"
	FrameUntrack FrameType = "untrack"

	// both directions
	FrameBroadcast FrameType = "broadcast"
)

// Frame is the JSON envelope exchanged with the relay server
type Frame struct {
	Type    FrameType                    `json:"type"`
	Event   string                       `json:"event,omitempty"`
	Ref     string                       `json:"ref,omitempty"` // connection ref, set on subscribed
	Payload json.RawMessage              `json:"payload,omitempty"`
	State   map[string][]json.RawMessage `json:"state,omitempty"`
}
