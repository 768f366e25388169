package room

import (
	"context"
	"sync"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Tracker keeps the roster of one channel in step with its presence syncs
// and publishes the local participant's record.
type Tracker struct {
	ch realtime.Channel

	mu        sync.Mutex
	roster    []domain.Participant
	listeners []func([]domain.Participant)
}

// NewTracker wires a tracker to ch. It must be created before ch is subscribed.
func NewTracker(ch realtime.Channel) *Tracker {
	t := &Tracker{ch: ch}
	ch.OnPresenceSync(func(state realtime.PresenceState) {
		t.set(FlattenPresence(state))
	})
	return t
}

// OnRosterChanged registers fn to receive every new roster
func (t *Tracker) OnRosterChanged(fn func([]domain.Participant)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Roster returns a copy of the last roster
func (t *Tracker) Roster() []domain.Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Participant(nil), t.roster...)
}

// Join publishes the local participant with no vote. Calling it again on the
// same subscription replaces the record.
func (t *Tracker) Join(ctx context.Context, id, name string) Ack {
	return t.UpdateSelf(ctx, domain.Participant{ID: id, Name: name})
}

// UpdateSelf republishes the full local record. The transport replaces the
// whole record, so p must carry every field. Updates issued before the
// channel is subscribed are dropped.
func (t *Tracker) UpdateSelf(ctx context.Context, p domain.Participant) Ack {
	if t.ch.Status() != realtime.StatusSubscribed {
		log.Debug().Str("channel", t.ch.Name()).Msg("presence update dropped, channel not subscribed")
		return Ack{}
	}
	if err := t.ch.Track(ctx, p); err != nil {
		log.Debug().Err(err).Str("channel", t.ch.Name()).Msg("presence update failed")
		return Ack{Err: err}
	}
	return Ack{Sent: true}
}

// Reset empties the roster, as after a teardown; the next sync starts from scratch
func (t *Tracker) Reset() {
	t.set(nil)
}

func (t *Tracker) set(roster []domain.Participant) {
	t.mu.Lock()
	t.roster = roster
	listeners := append([]func([]domain.Participant){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]domain.Participant(nil), roster...))
	}
}
