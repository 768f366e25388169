// Package natsrt is a realtime backend over plain NATS subjects. Broadcasts
// are published on a per-event subject; presence is gossiped between members
// with join, heartbeat, leave and query messages and expires when a member
// stops heartbeating.
package natsrt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Presence message kinds
const (
	kindJoin      = "join"
	kindHeartbeat = "heartbeat"
	kindLeave     = "leave"
	kindQuery     = "query"
)

// Config tunes subjects and presence timing
type Config struct {
	Prefix    string
	Heartbeat time.Duration
	TTL       time.Duration
}

// DefaultConfig returns the default subject prefix and presence timing
func DefaultConfig() Config {
	return Config{
		Prefix:    "poker",
		Heartbeat: domain.HeartbeatInterval,
		TTL:       domain.PresenceTTL,
	}
}

type presenceMessage struct {
	Kind string          `json:"kind"`
	Key  string          `json:"key,omitempty"`
	Ref  string          `json:"ref"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

type broadcastMessage struct {
	Event   string          `json:"event"`
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client hands out NATS-backed channels
type Client struct {
	bus   Bus
	cfg   Config
	clock clockwork.Clock
}

// Option customizes a Client
type Option func(*Client)

// WithClock replaces the real clock, for tests
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a client publishing on bus
func NewClient(bus Bus, cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	if cfg.TTL <= cfg.Heartbeat {
		cfg.TTL = 3 * cfg.Heartbeat
	}
	c := &Client{
		bus:   bus,
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Channel returns an unsubscribed channel handle
func (c *Client) Channel(name string, opts realtime.ChannelOptions) (realtime.Channel, error) {
	if err := realtime.ValidateName(name); err != nil {
		return nil, err
	}
	ref := uuid.NewString()
	key := opts.PresenceKey
	if key == "" {
		key = ref
	}
	base := c.cfg.Prefix + "." + subjectToken(name)
	return &channel{
		client:   c,
		name:     name,
		key:      key,
		ref:      ref,
		base:     base,
		table:    newPresenceTable(),
		dispatch: realtime.NewDispatcher(),
		stop:     make(chan struct{}),
	}, nil
}

// subjectToken makes name usable as a single subject token
func subjectToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

type channel struct {
	client   *Client
	name     string
	key      string
	ref      string
	base     string // <prefix>.<channel token>
	handlers realtime.Handlers
	dispatch *realtime.Dispatcher
	status   atomic.Int32
	closed   atomic.Bool

	mu    sync.Mutex // guards table, self and unsub
	table *presenceTable
	self  json.RawMessage
	unsub func() error

	stop chan struct{}
	wg   sync.WaitGroup
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

func (c *channel) presenceSubject() string { return c.base + ".presence" }

func (c *channel) broadcastSubject(event string) string {
	return c.base + ".broadcast." + subjectToken(event)
}

// syncLocked queues the current roster for the handlers. Caller holds c.mu.
func (c *channel) syncLocked() {
	state := c.table.snapshot()
	c.dispatch.Submit(func() { c.handlers.EmitPresence(state) })
}

// Subscribe listens on every subject of the channel and asks current members
// to announce themselves
func (c *channel) Subscribe(ctx context.Context) error {
	if c.closed.Load() {
		return realtime.ErrClosed
	}
	if c.Status() == realtime.StatusSubscribed {
		return nil
	}

	c.setStatus(realtime.StatusJoining)
	unsub, err := c.client.bus.Subscribe(c.base+".>", c.onMessage)
	if err != nil {
		c.setStatus(realtime.StatusErrored)
		return err
	}
	if err := c.client.bus.Flush(ctx); err != nil {
		unsub()
		c.setStatus(realtime.StatusErrored)
		return fmt.Errorf("flush subscription: %w", err)
	}

	c.mu.Lock()
	c.unsub = unsub
	c.syncLocked()
	c.mu.Unlock()

	c.setStatus(realtime.StatusSubscribed)
	c.publishPresence(kindQuery, nil)

	c.wg.Add(1)
	go c.heartbeatLoop()
	return nil
}

func (c *channel) onMessage(subject string, data []byte) {
	if c.closed.Load() {
		return
	}
	if subject == c.presenceSubject() {
		c.onPresence(data)
		return
	}
	if !strings.HasPrefix(subject, c.base+".broadcast.") {
		return
	}

	var msg broadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("channel", c.name).Msg("dropping malformed broadcast")
		return
	}
	if msg.Ref == c.ref {
		return
	}
	c.dispatch.Submit(func() { c.handlers.EmitBroadcast(msg.Event, msg.Payload) })
}

func (c *channel) onPresence(data []byte) {
	var msg presenceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("channel", c.name).Msg("dropping malformed presence message")
		return
	}
	if msg.Ref == "" || msg.Ref == c.ref {
		return
	}

	switch msg.Kind {
	case kindQuery:
		c.mu.Lock()
		self := c.self
		c.mu.Unlock()
		if self != nil {
			c.publishPresence(kindHeartbeat, self)
		}

	case kindJoin, kindHeartbeat:
		if msg.Key == "" || len(msg.Meta) == 0 {
			return
		}
		c.mu.Lock()
		if c.table.upsert(msg.Key, msg.Ref, msg.Meta, c.client.clock.Now()) {
			c.syncLocked()
		}
		c.mu.Unlock()

	case kindLeave:
		c.mu.Lock()
		if c.table.remove(msg.Ref) {
			c.syncLocked()
		}
		c.mu.Unlock()
	}
}

func (c *channel) heartbeatLoop() {
	defer c.wg.Done()

	ticker := c.client.clock.NewTicker(c.client.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			self := c.self
			if c.table.prune(c.client.clock.Now(), c.client.cfg.TTL, c.ref) > 0 {
				c.syncLocked()
			}
			c.mu.Unlock()

			if self != nil {
				c.publishPresence(kindHeartbeat, self)
			}
		}
	}
}

func (c *channel) publishPresence(kind string, meta json.RawMessage) error {
	data, err := json.Marshal(presenceMessage{Kind: kind, Key: c.key, Ref: c.ref, Meta: meta})
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}
	if err := c.client.bus.Publish(c.presenceSubject(), data); err != nil {
		log.Debug().Err(err).Str("channel", c.name).Str("kind", kind).Msg("presence publish failed")
		return err
	}
	return nil
}

// Track replaces our record locally and announces it to the other members
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

	c.mu.Lock()
	c.self = append(json.RawMessage(nil), raw...)
	if c.table.upsert(c.key, c.ref, raw, c.client.clock.Now()) {
		c.syncLocked()
	}
	c.mu.Unlock()

	return c.publishPresence(kindJoin, raw)
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
	data, err := json.Marshal(broadcastMessage{Event: event, Ref: c.ref, Payload: raw})
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	return c.client.bus.Publish(c.broadcastSubject(event), data)
}

// Unsubscribe announces our departure and drops the subscription
func (c *channel) Unsubscribe() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.stop)
	c.wg.Wait()

	c.mu.Lock()
	tracked := c.self != nil
	unsub := c.unsub
	c.unsub = nil
	c.self = nil
	c.table.reset()
	c.mu.Unlock()

	if tracked {
		c.publishPresence(kindLeave, nil)
	}

	var err error
	if unsub != nil {
		err = unsub()
	}
	c.status.Store(int32(realtime.StatusClosed))
	c.dispatch.Close()
	return err
}
