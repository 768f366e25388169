// Package memory is an in-process realtime backend. Every channel of a
// Backend shares its topics, which makes it suitable for tests and for
// running several participants inside one process.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
)

// ErrOffline is returned by Subscribe while the backend is offline
var ErrOffline = errors.New("memory backend offline")

type record struct {
	ref  string
	meta json.RawMessage
}

type topic struct {
	members  map[*channel]struct{}
	presence map[string][]record // key -> records in track order
}

// Backend holds every topic of the in-process transport
type Backend struct {
	mu      sync.Mutex
	topics  map[string]*topic
	offline bool
}

// NewBackend creates an empty backend
func NewBackend() *Backend {
	return &Backend{
		topics: make(map[string]*topic),
	}
}

// SetOffline makes subsequent Subscribe calls fail
func (b *Backend) SetOffline(offline bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = offline
}

// Client returns a realtime.Client bound to this backend
func (b *Backend) Client() realtime.Client {
	return clientFunc(b.channel)
}

// Presence returns the current presence snapshot of a topic
func (b *Backend) Presence(name string) realtime.PresenceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		return realtime.PresenceState{}
	}
	return t.snapshot()
}

// Members returns the number of subscribed channels on a topic
func (b *Backend) Members(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[name]; ok {
		return len(t.members)
	}
	return 0
}

type clientFunc func(name string, opts realtime.ChannelOptions) (realtime.Channel, error)

func (f clientFunc) Channel(name string, opts realtime.ChannelOptions) (realtime.Channel, error) {
	return f(name, opts)
}

func (b *Backend) channel(name string, opts realtime.ChannelOptions) (realtime.Channel, error) {
	if err := realtime.ValidateName(name); err != nil {
		return nil, err
	}
	ref := uuid.NewString()
	key := opts.PresenceKey
	if key == "" {
		key = ref
	}
	return &channel{
		backend:  b,
		name:     name,
		key:      key,
		ref:      ref,
		dispatch: realtime.NewDispatcher(),
	}, nil
}

func (t *topic) snapshot() realtime.PresenceState {
	state := make(realtime.PresenceState, len(t.presence))
	for key, records := range t.presence {
		metas := make([]json.RawMessage, len(records))
		for i, r := range records {
			metas[i] = r.meta
		}
		state[key] = metas
	}
	return state.Clone()
}

// syncLocked sends the current snapshot to every member. Caller holds b.mu.
func (t *topic) syncLocked() {
	state := t.snapshot()
	for m := range t.members {
		m.deliverPresence(state)
	}
}

func (b *Backend) join(c *channel) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offline {
		return ErrOffline
	}

	t, ok := b.topics[c.name]
	if !ok {
		t = &topic{
			members:  make(map[*channel]struct{}),
			presence: make(map[string][]record),
		}
		b.topics[c.name] = t
	}
	t.members[c] = struct{}{}
	c.deliverPresence(t.snapshot())
	return nil
}

func (b *Backend) track(c *channel, meta json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[c.name]
	if !ok {
		return
	}
	records := t.presence[c.key]
	replaced := false
	for i := range records {
		if records[i].ref == c.ref {
			records[i].meta = meta
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record{ref: c.ref, meta: meta})
	}
	t.presence[c.key] = records
	t.syncLocked()
}

func (b *Backend) untrackLocked(t *topic, c *channel) bool {
	records := t.presence[c.key]
	for i := range records {
		if records[i].ref == c.ref {
			records = append(records[:i], records[i+1:]...)
			if len(records) == 0 {
				delete(t.presence, c.key)
			} else {
				t.presence[c.key] = records
			}
			return true
		}
	}
	return false
}

func (b *Backend) broadcast(c *channel, event string, payload json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[c.name]
	if !ok {
		return
	}
	for m := range t.members {
		if m != c {
			m.deliverBroadcast(event, payload)
		}
	}
}

func (b *Backend) leave(c *channel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[c.name]
	if !ok {
		return
	}
	if _, member := t.members[c]; !member {
		return
	}
	delete(t.members, c)
	changed := b.untrackLocked(t, c)

	if len(t.members) == 0 {
		delete(b.topics, c.name)
		return
	}
	if changed {
		t.syncLocked()
	}
}

type channel struct {
	backend  *Backend
	name     string
	key      string
	ref      string
	handlers realtime.Handlers
	dispatch *realtime.Dispatcher
	status   atomic.Int32
	closed   atomic.Bool
}

func (c *channel) Name() string { return c.name }

func (c *channel) Status() realtime.Status {
	return realtime.Status(c.status.Load())
}

func (c *channel) OnPresenceSync(fn func(realtime.PresenceState)) { c.handlers.AddPresence(fn) }

func (c *channel) OnBroadcast(event string, fn func(json.RawMessage)) {
	c.handlers.AddBroadcast(event, fn)
}

func (c *channel) OnStatus(fn func(realtime.Status)) { c.handlers.AddStatus(fn) }

func (c *channel) setStatus(s realtime.Status) {
	if realtime.Status(c.status.Swap(int32(s))) == s {
		return
	}
	c.dispatch.Submit(func() { c.handlers.EmitStatus(s) })
}

func (c *channel) Subscribe(ctx context.Context) error {
	if c.closed.Load() {
		return realtime.ErrClosed
	}
	if c.Status() == realtime.StatusSubscribed {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.setStatus(realtime.StatusJoining)
	if err := c.backend.join(c); err != nil {
		c.setStatus(realtime.StatusErrored)
		return err
	}
	c.setStatus(realtime.StatusSubscribed)
	return nil
}

func (c *channel) Track(ctx context.Context, meta any) error {
	if c.Status() != realtime.StatusSubscribed {
		return realtime.ErrNotSubscribed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := realtime.Encode(meta)
	if err != nil {
		return err
	}
	c.backend.track(c, raw)
	return nil
}

func (c *channel) Send(ctx context.Context, event string, payload any) error {
	if c.Status() != realtime.StatusSubscribed {
		return realtime.ErrNotSubscribed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := realtime.Encode(payload)
	if err != nil {
		return err
	}
	c.backend.broadcast(c, event, raw)
	return nil
}

func (c *channel) Unsubscribe() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.backend.leave(c)
	c.status.Store(int32(realtime.StatusClosed))
	c.dispatch.Close()
	return nil
}

func (c *channel) deliverPresence(state realtime.PresenceState) {
	c.dispatch.Submit(func() { c.handlers.EmitPresence(state) })
}

func (c *channel) deliverBroadcast(event string, payload json.RawMessage) {
	c.dispatch.Submit(func() { c.handlers.EmitBroadcast(event, payload) })
}
