// Package room keeps one client's view of a planning poker room in step
// with its peers over a realtime channel. There is no authority: every
// client applies the same presence syncs and state broadcasts and arrives at
// the same view.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
	"github.com/rs/zerolog/log"
)

// ErrEmptyRoomCode is returned by Join for a blank code
var ErrEmptyRoomCode = errors.New("room code is empty")

// Ack is the outcome of a fire-and-forget room operation. Callers may ignore
// it; Sent is false when the operation was dropped or failed.
type Ack struct {
	Sent bool
	Err  error
}

func joinAcks(acks ...Ack) Ack {
	out := Ack{Sent: true}
	var errs []error
	for _, a := range acks {
		out.Sent = out.Sent && a.Sent
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	out.Err = errors.Join(errs...)
	return out
}

// Status is the lifecycle of a Controller's room session
type Status int

const (
	Disconnected Status = iota
	Joining
	Joined
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IdentitySource resolves the local participant id
type IdentitySource interface {
	GetOrCreateLocalID() string
}

// View is a snapshot of the local room view
type View struct {
	Code      string
	Status    Status
	Players   []domain.Participant
	GameState domain.RoomState
	MyID      string

	myVote *domain.CardValue
}

// MyVote returns the local participant's own vote
func (v View) MyVote() (domain.CardValue, bool) {
	if v.myVote == nil {
		return "", false
	}
	return *v.myVote, true
}

// session is everything owned by one join; it is replaced on every Join so
// callbacks from an older channel can be recognized and ignored
type session struct {
	code        string
	ch          realtime.Channel
	tracker     *Tracker
	broadcaster *Broadcaster
}

// Option customizes a Controller
type Option func(*Controller)

// WithOpTimeout bounds the network send of each operation
func WithOpTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// Controller owns one room session at a time and exposes the room operations
type Controller struct {
	rt        realtime.Client
	ids       IdentitySource
	opTimeout time.Duration

	mu      sync.Mutex
	status  Status
	sess    *session
	myID    string
	self    domain.Participant
	players []domain.Participant
	state   domain.RoomState

	notifyMu  sync.Mutex
	watchMu   sync.Mutex
	watchers  map[int]func(View)
	nextWatch int
}

// NewController creates a disconnected controller
func NewController(rt realtime.Client, ids IdentitySource, opts ...Option) *Controller {
	c := &Controller{
		rt:        rt,
		ids:       ids,
		opTimeout: 5 * time.Second,
		watchers:  make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join leaves any current room, subscribes to code's channel and publishes
// the local participant with no vote. On subscription failure the session
// stays Joining and the error is returned; calling Join again retries.
func (c *Controller) Join(ctx context.Context, code, name string) error {
	code = domain.NormalizeRoomCode(code)
	if code == "" {
		return ErrEmptyRoomCode
	}

	c.Leave()

	id := c.ids.GetOrCreateLocalID()
	channel := domain.ChannelName(code)
	ch, err := c.rt.Channel(channel, realtime.ChannelOptions{PresenceKey: id})
	if err != nil {
		return fmt.Errorf("open channel %s: %w", channel, err)
	}

	sess := &session{
		code:        code,
		ch:          ch,
		tracker:     NewTracker(ch),
		broadcaster: NewBroadcaster(ch),
	}
	sess.tracker.OnRosterChanged(func(roster []domain.Participant) { c.applyRoster(sess, roster) })
	sess.broadcaster.OnStateReceived(func(state domain.RoomState) { c.applyState(sess, state) })
	ch.OnStatus(func(s realtime.Status) { c.applyChannelStatus(sess, s) })

	c.mu.Lock()
	c.sess = sess
	c.status = Joining
	c.myID = id
	c.self = domain.Participant{ID: id, Name: name}
	c.players = nil
	c.state = domain.RoomState{}
	c.mu.Unlock()
	c.notify()

	log.Debug().Str("room", code).Str("participant_id", id).Msg("joining room")
	if err := ch.Subscribe(ctx); err != nil {
		log.Debug().Err(err).Str("room", code).Msg("subscription failed")
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return nil
	}
	self := c.self
	c.mu.Unlock()

	// The initial record goes out while still Joining, so no operation can
	// publish ahead of it and be overwritten.
	trackCtx, cancel := c.opContext(ctx)
	sess.tracker.Join(trackCtx, self.ID, self.Name)
	cancel()

	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return nil
	}
	c.status = Joined
	c.patchSelfLocked()
	c.mu.Unlock()

	c.notify()
	return nil
}

// Leave releases the current subscription, if any
func (c *Controller) Leave() error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.status = Disconnected
	c.players = nil
	c.state = domain.RoomState{}
	c.self.Vote = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	err := sess.ch.Unsubscribe()
	sess.tracker.Reset()
	c.notify()
	log.Debug().Str("room", sess.code).Msg("left room")
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sess.ch.Name(), err)
	}
	return nil
}

// Status returns the session lifecycle state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// View returns a snapshot of the room view
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Status:    c.status,
		Players:   make([]domain.Participant, len(c.players)),
		GameState: c.state,
		MyID:      c.myID,
	}
	if c.sess != nil {
		v.Code = c.sess.code
	}
	for i, p := range c.players {
		v.Players[i] = p.WithVote(p.Vote)
	}
	if c.self.Vote != nil {
		vote := *c.self.Vote
		v.myVote = &vote
	}
	return v
}

// Watch calls fn with a fresh View after every change until cancel is
// called. fn runs on the goroutine that caused the change and must not call
// back into the Controller's operations.
func (c *Controller) Watch(fn func(View)) (cancel func()) {
	c.watchMu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.watchMu.Unlock()

	return func() {
		c.watchMu.Lock()
		delete(c.watchers, id)
		c.watchMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	v := c.View()
	c.watchMu.Lock()
	fns := make([]func(View), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.watchMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// joinedLocked returns the active session, or nil when operations must be dropped
func (c *Controller) joinedLocked(op string) *session {
	if c.status != Joined || c.sess == nil {
		log.Debug().Str("op", op).Str("status", c.status.String()).Msg("room operation dropped")
		return nil
	}
	return c.sess
}

// opContext bounds one network send by the operation timeout
func (c *Controller) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.opTimeout)
}

// patchSelfLocked mirrors the local record into the roster
func (c *Controller) patchSelfLocked() {
	for i := range c.players {
		if c.players[i].ID == c.myID {
			c.players[i] = c.self.WithVote(c.self.Vote)
		}
	}
}

// Vote sets the local participant's vote. The value is passed through as is.
func (c *Controller) Vote(ctx context.Context, value domain.CardValue) Ack {
	c.mu.Lock()
	sess := c.joinedLocked("vote")
	if sess == nil {
		c.mu.Unlock()
		return Ack{}
	}
	c.self = c.self.WithVote(&value)
	c.patchSelfLocked()
	self := c.self
	c.mu.Unlock()

	c.notify()
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return sess.tracker.UpdateSelf(ctx, self)
}

// Reveal flips the shared state to revealed
func (c *Controller) Reveal(ctx context.Context) Ack {
	c.mu.Lock()
	sess := c.joinedLocked("reveal")
	if sess == nil {
		c.mu.Unlock()
		return Ack{}
	}
	c.state.IsRevealed = true
	state := c.state
	c.mu.Unlock()

	c.notify()
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return sess.broadcaster.Publish(ctx, state)
}

// Reset hides the cards again and clears the local participant's own vote.
// Other participants clear theirs when they observe the reveal flag drop.
func (c *Controller) Reset(ctx context.Context) Ack {
	c.mu.Lock()
	sess := c.joinedLocked("reset")
	if sess == nil {
		c.mu.Unlock()
		return Ack{}
	}
	c.state.IsRevealed = false
	c.self.Vote = nil
	c.patchSelfLocked()
	state, self := c.state, c.self
	c.mu.Unlock()

	c.notify()
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return joinAcks(
		sess.broadcaster.Publish(ctx, state),
		sess.tracker.UpdateSelf(ctx, self),
	)
}

// SetTopic starts a fresh, unrevealed round about topic
func (c *Controller) SetTopic(ctx context.Context, topic string) Ack {
	c.mu.Lock()
	sess := c.joinedLocked("set_topic")
	if sess == nil {
		c.mu.Unlock()
		return Ack{}
	}
	wasRevealed := c.state.IsRevealed
	c.state = domain.RoomState{IsRevealed: false, Topic: topic}
	state := c.state
	cleared := c.clearOnHideLocked(wasRevealed)
	self := c.self
	c.mu.Unlock()

	c.notify()
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	ack := sess.broadcaster.Publish(ctx, state)
	if cleared {
		ack = joinAcks(ack, sess.tracker.UpdateSelf(ctx, self))
	}
	return ack
}

// SetSpectator switches the local participant between voting and watching
func (c *Controller) SetSpectator(ctx context.Context, spectator bool) Ack {
	c.mu.Lock()
	sess := c.joinedLocked("set_spectator")
	if sess == nil {
		c.mu.Unlock()
		return Ack{}
	}
	c.self.IsSpectator = spectator
	c.patchSelfLocked()
	self := c.self
	c.mu.Unlock()

	c.notify()
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return sess.tracker.UpdateSelf(ctx, self)
}

// clearOnHideLocked drops the local vote when the reveal flag goes from
// true to false, and reports whether the record needs republishing
func (c *Controller) clearOnHideLocked(wasRevealed bool) bool {
	if !wasRevealed || c.state.IsRevealed || c.self.Vote == nil {
		return false
	}
	c.self.Vote = nil
	c.patchSelfLocked()
	return true
}

func (c *Controller) applyRoster(sess *session, roster []domain.Participant) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	c.players = roster
	if c.status == Joined {
		c.patchSelfLocked()
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) applyState(sess *session, state domain.RoomState) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	wasRevealed := c.state.IsRevealed
	c.state = state
	cleared := c.status == Joined && c.clearOnHideLocked(wasRevealed)
	self := c.self
	c.mu.Unlock()

	c.notify()
	if cleared {
		ctx, cancel := c.opContext(context.Background())
		defer cancel()
		sess.tracker.UpdateSelf(ctx, self)
	}
}

// applyChannelStatus drops back to Joining when an established subscription
// fails; the roster is cleared until the caller joins again
func (c *Controller) applyChannelStatus(sess *session, s realtime.Status) {
	if s != realtime.StatusErrored {
		return
	}
	c.mu.Lock()
	if c.sess != sess || c.status != Joined {
		c.mu.Unlock()
		return
	}
	c.status = Joining
	c.mu.Unlock()

	log.Warn().Str("room", sess.code).Msg("room connection lost")
	sess.tracker.Reset()
}
