package natsrt

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
)

type presenceEntry struct {
	key  string
	meta json.RawMessage
	seen time.Time
	seq  uint64
}

// presenceTable is one member's view of everyone tracked on a channel,
// indexed by subscription ref
type presenceTable struct {
	entries map[string]*presenceEntry
	seq     uint64
}

func newPresenceTable() *presenceTable {
	return &presenceTable{entries: make(map[string]*presenceEntry)}
}

// upsert records meta for ref and reports whether the visible state changed
func (t *presenceTable) upsert(key, ref string, meta json.RawMessage, now time.Time) bool {
	if e, ok := t.entries[ref]; ok {
		e.seen = now
		if e.key == key && bytes.Equal(e.meta, meta) {
			return false
		}
		e.key = key
		e.meta = append(json.RawMessage(nil), meta...)
		return true
	}
	t.seq++
	t.entries[ref] = &presenceEntry{
		key:  key,
		meta: append(json.RawMessage(nil), meta...),
		seen: now,
		seq:  t.seq,
	}
	return true
}

func (t *presenceTable) remove(ref string) bool {
	if _, ok := t.entries[ref]; !ok {
		return false
	}
	delete(t.entries, ref)
	return true
}

// prune drops entries not seen within ttl, except keep
func (t *presenceTable) prune(now time.Time, ttl time.Duration, keep string) int {
	removed := 0
	for ref, e := range t.entries {
		if ref == keep {
			continue
		}
		if now.Sub(e.seen) > ttl {
			delete(t.entries, ref)
			removed++
		}
	}
	return removed
}

func (t *presenceTable) reset() {
	t.entries = make(map[string]*presenceEntry)
}

// snapshot groups records by key, each key's records in first-seen order
func (t *presenceTable) snapshot() realtime.PresenceState {
	ordered := make([]*presenceEntry, 0, len(t.entries))
	for _, e := range t.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	state := make(realtime.PresenceState)
	for _, e := range ordered {
		state[e.key] = append(state[e.key], append(json.RawMessage(nil), e.meta...))
	}
	return state
}
