package ws

import (
	"encoding/json"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
)

// buildFrame encodes a frame as JSON bytes
func (h *Hub) buildFrame(f domain.Frame) []byte {
	data, _ := json.Marshal(f)
	return data
}

// buildPresenceSync creates a presence_sync frame with every tracked record
// NOTE: Caller must hold at least RLock when calling this
func (h *Hub) buildPresenceSync() []byte {
	state := make(map[string][]json.RawMessage, len(h.presence))
	for key, records := range h.presence {
		metas := make([]json.RawMessage, len(records))
		for i, r := range records {
			metas[i] = r.meta
		}
		state[key] = metas
	}

	return h.buildFrame(domain.Frame{
		Type:  domain.FramePresenceSync,
		State: state,
	})
}
