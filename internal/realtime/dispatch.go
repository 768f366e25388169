package realtime

import (
	"encoding/json"
	"sync"
)

// Dispatcher runs submitted callbacks one at a time, in submission order, on
// its own goroutine. The queue is unbounded so a callback may submit more work
// without deadlocking.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewDispatcher starts a dispatcher goroutine
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit queues fn; it reports false once the dispatcher is closed
func (d *Dispatcher) Submit(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops the dispatcher and drops pending callbacks. It does not wait for
// a running callback, so it may be called from inside one.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.queue = nil
	close(d.done)
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if d.closed || len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			fn := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()

			fn()
		}
	}
}

// Handlers stores the callbacks registered on a channel
type Handlers struct {
	mu        sync.RWMutex
	presence  []func(PresenceState)
	status    []func(Status)
	broadcast map[string][]func(json.RawMessage)
}

func (h *Handlers) AddPresence(fn func(PresenceState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.presence = append(h.presence, fn)
}

func (h *Handlers) AddStatus(fn func(Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = append(h.status, fn)
}

func (h *Handlers) AddBroadcast(event string, fn func(json.RawMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.broadcast == nil {
		h.broadcast = make(map[string][]func(json.RawMessage))
	}
	h.broadcast[event] = append(h.broadcast[event], fn)
}

// EmitPresence calls every presence handler with its own copy of state
func (h *Handlers) EmitPresence(state PresenceState) {
	h.mu.RLock()
	fns := append([]func(PresenceState){}, h.presence...)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(state.Clone())
	}
}

func (h *Handlers) EmitStatus(s Status) {
	h.mu.RLock()
	fns := append([]func(Status){}, h.status...)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (h *Handlers) EmitBroadcast(event string, payload json.RawMessage) {
	h.mu.RLock()
	fns := append([]func(json.RawMessage){}, h.broadcast[event]...)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(append(json.RawMessage(nil), payload...))
	}
}
