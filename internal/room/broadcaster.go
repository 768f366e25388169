package room

import (
	"context"
	"encoding/json"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Broadcaster sends and receives the shared RoomState on the game_state event
type Broadcaster struct {
	ch realtime.Channel
}

// NewBroadcaster wraps ch. It must be created before ch is subscribed.
func NewBroadcaster(ch realtime.Channel) *Broadcaster {
	return &Broadcaster{ch: ch}
}

// Publish sends the full state to every other subscriber
func (b *Broadcaster) Publish(ctx context.Context, state domain.RoomState) Ack {
	if err := b.ch.Send(ctx, domain.GameStateEvent, state); err != nil {
		log.Debug().Err(err).Str("channel", b.ch.Name()).Msg("state broadcast failed")
		return Ack{Err: err}
	}
	return Ack{Sent: true}
}

// OnStateReceived registers fn for every decodable state broadcast. Each
// payload replaces the previous state; there is no ordering beyond delivery.
func (b *Broadcaster) OnStateReceived(fn func(domain.RoomState)) {
	b.ch.OnBroadcast(domain.GameStateEvent, func(payload json.RawMessage) {
		var state domain.RoomState
		if err := json.Unmarshal(payload, &state); err != nil {
			log.Debug().Err(err).Str("channel", b.ch.Name()).Msg("ignoring undecodable state broadcast")
			return
		}
		fn(state)
	})
}
