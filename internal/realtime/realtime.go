// Package realtime describes the channel, presence and broadcast primitives
// the room core consumes, independent of the backend that provides them.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyChannelName is returned when a channel is requested without a name
	ErrEmptyChannelName = errors.New("channel name is empty")

	// ErrNotSubscribed is returned by Track and Send before the handshake completes
	ErrNotSubscribed = errors.New("channel not subscribed")

	// ErrClosed is returned when using a channel after Unsubscribe
	ErrClosed = errors.New("channel closed")
)

// Status is the lifecycle state of a channel subscription
type Status int32

const (
	StatusClosed Status = iota
	StatusJoining
	StatusSubscribed
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusJoining:
		return "joining"
	case StatusSubscribed:
		return "subscribed"
	case StatusErrored:
		return "errored"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// PresenceState maps a presence key to every record tracked under it
type PresenceState map[string][]json.RawMessage

// Clone returns a deep copy safe to hand to another goroutine
func (s PresenceState) Clone() PresenceState {
	out := make(PresenceState, len(s))
	for key, records := range s {
		cp := make([]json.RawMessage, len(records))
		for i, r := range records {
			cp[i] = append(json.RawMessage(nil), r...)
		}
		out[key] = cp
	}
	return out
}

// ChannelOptions configures a channel before it is subscribed
type ChannelOptions struct {
	// PresenceKey is the key Track records are stored under
	PresenceKey string
}

// Client hands out channels of one backend
type Client interface {
	Channel(name string, opts ChannelOptions) (Channel, error)
}

// Channel is a named pub/sub scope with presence. Handlers must be registered
// before Subscribe. All handlers of one channel are invoked one at a time, in
// the order the backend delivered the events. Broadcasts are not echoed back
// to the sending channel.
type Channel interface {
	Name() string
	Status() Status

	OnPresenceSync(fn func(PresenceState))
	OnBroadcast(event string, fn func(payload json.RawMessage))
	OnStatus(fn func(Status))

	// Subscribe blocks until the backend confirms the subscription or ctx ends
	Subscribe(ctx context.Context) error

	// Track replaces this channel's presence record under its key
	Track(ctx context.Context, meta any) error

	// Send broadcasts payload to every other subscriber of the channel
	Send(ctx context.Context, event string, payload any) error

	// Unsubscribe releases the subscription; it is safe to call more than once
	Unsubscribe() error
}

// Encode marshals v unless it is already raw JSON
func Encode(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case json.RawMessage:
		return t, nil
	case []byte:
		return json.RawMessage(t), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// ValidateName rejects empty channel names
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyChannelName
	}
	return nil
}
