package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestDispatcher_PreservesOrder(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := 0; i < 100; i++ {
		i := i
		d.Submit(func() {
			mu.Lock()
			got = append(got, i)
			n := len(got)
			mu.Unlock()
			if n == 100 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for callbacks")
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("Callback %d ran at position %d", v, i)
		}
	}
}

func TestDispatcher_SubmitFromCallback(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	done := make(chan struct{})
	d.Submit(func() {
		d.Submit(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Nested submit never ran")
	}
}

func TestDispatcher_CloseFromCallback(t *testing.T) {
	d := NewDispatcher()

	closed := make(chan struct{})
	d.Submit(func() {
		d.Close()
		close(closed)
	})

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close inside a callback should not block")
	}

	if d.Submit(func() {}) {
		t.Error("Submit after Close should report false")
	}
}

func TestHandlers_EmitCopies(t *testing.T) {
	var h Handlers
	var seen PresenceState
	h.AddPresence(func(s PresenceState) { seen = s })

	state := PresenceState{"a": {json.RawMessage(`{"id":"a"}`)}}
	h.EmitPresence(state)

	state["a"][0][2] = 'X'
	if string(seen["a"][0]) != `{"id":"a"}` {
		t.Errorf("Handler saw caller mutation: %s", seen["a"][0])
	}
}

func TestHandlers_BroadcastByEvent(t *testing.T) {
	var h Handlers
	calls := 0
	h.AddBroadcast("game_state", func(json.RawMessage) { calls++ })

	h.EmitBroadcast("other", json.RawMessage(`{}`))
	h.EmitBroadcast("game_state", json.RawMessage(`{}`))

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestEncode(t *testing.T) {
	raw := json.RawMessage(`{"a":1}`)
	got, err := Encode(raw)
	if err != nil || string(got) != `{"a":1}` {
		t.Errorf("Expected raw passthrough, got %s (%v)", got, err)
	}

	got, err = Encode(map[string]int{"b": 2})
	if err != nil || string(got) != `{"b":2}` {
		t.Errorf("Expected marshalled map, got %s (%v)", got, err)
	}

	if _, err := Encode(make(chan int)); err == nil {
		t.Error("Expected error for unencodable value")
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName(""); err != ErrEmptyChannelName {
		t.Errorf("Expected ErrEmptyChannelName, got %v", err)
	}
	if err := ValidateName("room:AB12"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
