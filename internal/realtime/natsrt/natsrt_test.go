package natsrt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
)

type fakeMsg struct {
	subject string
	data    []byte
}

type fakeSub struct {
	pattern string
	queue   chan fakeMsg
	done    chan struct{}
}

// fakeBus delivers asynchronously, one goroutine per subscription, like NATS
type fakeBus struct {
	mu        sync.Mutex
	subs      map[*fakeSub]struct{}
	published []fakeMsg
	flushErr  error
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[*fakeSub]struct{})}
}

func (b *fakeBus) Subscribe(pattern string, fn func(string, []byte)) (func() error, error) {
	s := &fakeSub{pattern: pattern, queue: make(chan fakeMsg, 1024), done: make(chan struct{})}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-s.done:
				return
			case m := <-s.queue:
				fn(m.subject, m.data)
			}
		}
	}()

	var once sync.Once
	return func() error {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.done)
		})
		return nil
	}, nil
}

func matches(pattern, subject string) bool {
	if strings.HasSuffix(pattern, ".>") {
		return strings.HasPrefix(subject, strings.TrimSuffix(pattern, ">"))
	}
	return pattern == subject
}

func (b *fakeBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	b.published = append(b.published, fakeMsg{subject, append([]byte(nil), data...)})
	var targets []*fakeSub
	for s := range b.subs {
		if matches(s.pattern, subject) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.queue <- fakeMsg{subject, data}:
		case <-s.done:
		}
	}
	return nil
}

func (b *fakeBus) Flush(ctx context.Context) error {
	return b.flushErr
}

func (b *fakeBus) count(kind, ref string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.published {
		var pm presenceMessage
		if json.Unmarshal(m.data, &pm) == nil && pm.Kind == kind && pm.Ref == ref {
			n++
		}
	}
	return n
}

type recorder struct {
	mu         sync.Mutex
	last       realtime.PresenceState
	broadcasts []string
}

func (r *recorder) attach(ch realtime.Channel) {
	ch.OnPresenceSync(func(s realtime.PresenceState) {
		r.mu.Lock()
		r.last = s
		r.mu.Unlock()
	})
	ch.OnBroadcast("game_state", func(p json.RawMessage) {
		r.mu.Lock()
		r.broadcasts = append(r.broadcasts, string(p))
		r.mu.Unlock()
	})
}

func (r *recorder) records(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.last[key])
}

func (r *recorder) broadcastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.broadcasts)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func join(t *testing.T, c *Client, key string) (*channel, *recorder) {
	t.Helper()
	ch, err := c.Channel("room:AB12", realtime.ChannelOptions{PresenceKey: key})
	if err != nil {
		t.Fatalf("Channel failed: %v", err)
	}
	rec := &recorder{}
	rec.attach(ch)
	if err := ch.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	t.Cleanup(func() { ch.Unsubscribe() })
	return ch.(*channel), rec
}

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"room:AB12":  "room_AB12",
		"a.b.c":      "a_b_c",
		"game_state": "game_state",
		"x > *":      "x____",
	}
	for in, expected := range tests {
		if got := subjectToken(in); got != expected {
			t.Errorf("subjectToken(%q) = %q, expected %q", in, got, expected)
		}
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(newFakeBus(), Config{Heartbeat: time.Second, TTL: time.Second})
	if c.cfg.Prefix != "poker" {
		t.Errorf("Expected default prefix, got %q", c.cfg.Prefix)
	}
	if c.cfg.TTL != 3*time.Second {
		t.Errorf("TTL not above heartbeat should be raised to 3 heartbeats, got %v", c.cfg.TTL)
	}
}

func TestChannel_EmptyName(t *testing.T) {
	c := NewClient(newFakeBus(), DefaultConfig())
	if _, err := c.Channel("", realtime.ChannelOptions{}); !errors.Is(err, realtime.ErrEmptyChannelName) {
		t.Errorf("Expected ErrEmptyChannelName, got %v", err)
	}
}

func TestChannel_FlushFailure(t *testing.T) {
	bus := newFakeBus()
	bus.flushErr = errors.New("no server")
	c := NewClient(bus, DefaultConfig())

	ch, _ := c.Channel("room:AB12", realtime.ChannelOptions{PresenceKey: "alice"})
	if err := ch.Subscribe(context.Background()); err == nil {
		t.Fatal("Expected subscribe to fail")
	}
	if ch.Status() != realtime.StatusErrored {
		t.Errorf("Expected errored status, got %s", ch.Status())
	}
	if err := ch.Track(context.Background(), map[string]string{"id": "alice"}); !errors.Is(err, realtime.ErrNotSubscribed) {
		t.Errorf("Expected ErrNotSubscribed, got %v", err)
	}
}

func TestChannel_PresenceBetweenMembers(t *testing.T) {
	c := NewClient(newFakeBus(), DefaultConfig(), WithClock(clockwork.NewFakeClock()))

	alice, aliceRec := join(t, c, "alice")
	_, bobRec := join(t, c, "bob")

	if err := alice.Track(context.Background(), map[string]any{"id": "alice", "vote": nil}); err != nil {
		t.Fatalf("Track failed: %v", err)
	}

	waitFor(t, "alice to see herself", func() bool { return aliceRec.records("alice") == 1 })
	waitFor(t, "bob to see alice", func() bool { return bobRec.records("alice") == 1 })

	// Re-track replaces
	alice.Track(context.Background(), map[string]any{"id": "alice", "vote": 8})
	waitFor(t, "bob to see the new vote", func() bool {
		bobRec.mu.Lock()
		defer bobRec.mu.Unlock()
		recs := bobRec.last["alice"]
		return len(recs) == 1 && strings.Contains(string(recs[0]), `"vote":8`)
	})
}

func TestChannel_LateJoinerQueriesMembers(t *testing.T) {
	c := NewClient(newFakeBus(), DefaultConfig(), WithClock(clockwork.NewFakeClock()))

	alice, _ := join(t, c, "alice")
	alice.Track(context.Background(), map[string]string{"id": "alice"})

	_, bobRec := join(t, c, "bob")
	waitFor(t, "late joiner to learn about alice", func() bool { return bobRec.records("alice") == 1 })
}

func TestChannel_BroadcastNotEchoed(t *testing.T) {
	c := NewClient(newFakeBus(), DefaultConfig(), WithClock(clockwork.NewFakeClock()))

	alice, aliceRec := join(t, c, "alice")
	_, bobRec := join(t, c, "bob")

	if err := alice.Send(context.Background(), "game_state", map[string]bool{"isRevealed": true}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, "bob to receive the broadcast", func() bool { return bobRec.broadcastCount() == 1 })
	time.Sleep(20 * time.Millisecond)
	if aliceRec.broadcastCount() != 0 {
		t.Error("Sender should not receive its own broadcast")
	}
}

func TestChannel_LeaveRemovesPresence(t *testing.T) {
	bus := newFakeBus()
	c := NewClient(bus, DefaultConfig(), WithClock(clockwork.NewFakeClock()))

	alice, _ := join(t, c, "alice")
	_, bobRec := join(t, c, "bob")

	alice.Track(context.Background(), map[string]string{"id": "alice"})
	waitFor(t, "bob to see alice", func() bool { return bobRec.records("alice") == 1 })

	if err := alice.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if bus.count(kindLeave, alice.ref) != 1 {
		t.Error("Expected a leave message")
	}
	waitFor(t, "alice to leave bob's roster", func() bool { return bobRec.records("alice") == 0 })

	if err := alice.Subscribe(context.Background()); !errors.Is(err, realtime.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestChannel_HeartbeatRepublishes(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClock()
	c := NewClient(bus, DefaultConfig(), WithClock(clock))

	alice, _ := join(t, c, "alice")
	alice.Track(context.Background(), map[string]string{"id": "alice"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("heartbeat ticker not started: %v", err)
	}

	clock.Advance(DefaultConfig().Heartbeat)
	waitFor(t, "a heartbeat", func() bool { return bus.count(kindHeartbeat, alice.ref) >= 1 })
}

func TestChannel_SilentMemberExpires(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	c := NewClient(bus, cfg, WithClock(clock))

	_, bobRec := join(t, c, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("heartbeat ticker not started: %v", err)
	}

	// A member that announces itself once and then goes silent
	ghost, _ := json.Marshal(presenceMessage{Kind: kindJoin, Key: "ghost", Ref: "ghost-ref", Meta: json.RawMessage(`{"id":"ghost"}`)})
	bus.Publish("poker.room_AB12.presence", ghost)
	waitFor(t, "bob to see the ghost", func() bool { return bobRec.records("ghost") == 1 })

	clock.Advance(cfg.TTL + cfg.Heartbeat)
	waitFor(t, "the ghost to expire", func() bool { return bobRec.records("ghost") == 0 })
}

func TestPresenceTable(t *testing.T) {
	table := newPresenceTable()
	now := time.Unix(0, 0)

	if !table.upsert("alice", "r1", json.RawMessage(`{"v":1}`), now) {
		t.Error("First upsert should change state")
	}
	if table.upsert("alice", "r1", json.RawMessage(`{"v":1}`), now.Add(time.Second)) {
		t.Error("Identical upsert should only refresh")
	}
	table.upsert("alice", "r2", json.RawMessage(`{"v":2}`), now)
	table.upsert("bob", "r3", json.RawMessage(`{"v":3}`), now.Add(10*time.Second))

	snap := table.snapshot()
	if len(snap["alice"]) != 2 || string(snap["alice"][0]) != `{"v":1}` {
		t.Errorf("Expected both alice records in first-seen order, got %v", snap["alice"])
	}

	// r1 was refreshed at 1s; r2 at 0s; r3 at 10s
	if n := table.prune(now.Add(12*time.Second), 11*time.Second, "r2"); n != 0 {
		t.Errorf("Expected nothing pruned, got %d", n)
	}
	if n := table.prune(now.Add(13*time.Second), 11*time.Second, "r2"); n != 1 {
		t.Errorf("Expected r1 pruned, got %d", n)
	}
	if !table.remove("r3") || table.remove("r3") {
		t.Error("remove should report presence exactly once")
	}

	table.reset()
	if len(table.snapshot()) != 0 {
		t.Error("Expected empty snapshot after reset")
	}
}
