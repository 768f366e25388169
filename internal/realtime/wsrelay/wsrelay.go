// Package wsrelay is a realtime backend that talks to the relay server's
// /ws endpoint over gorilla/websocket.
package wsrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a frame to the relay
	writeWait = 10 * time.Second

	// Time allowed between relay pings before the link is considered dead
	pongWait = 60 * time.Second
)

// Client dials one relay endpoint, e.g. ws://localhost:8080/ws
type Client struct {
	endpoint string
	dialer   *websocket.Dialer
	header   http.Header
}

// Option customizes a Client
type Option func(*Client)

// WithDialer replaces the default websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithHeader adds request headers (for example Origin) to every dial
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h.Clone() }
}

// NewClient creates a relay client for endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
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
	return &channel{
		client:   c,
		name:     name,
		key:      opts.PresenceKey,
		dispatch: realtime.NewDispatcher(),
		ready:    make(chan struct{}),
		lost:     make(chan struct{}),
	}, nil
}

type channel struct {
	client   *Client
	name     string
	key      string
	handlers realtime.Handlers
	dispatch *realtime.Dispatcher
	status   atomic.Int32
	closed   atomic.Bool

	mu        sync.Mutex // guards conn and writes
	conn      *websocket.Conn
	ref       string
	ready     chan struct{}
	readyOnce sync.Once
	lost      chan struct{} // closed when the read loop exits
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

func (c *channel) dialURL() (string, error) {
	u, err := url.Parse(c.client.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("channel", c.name)
	if c.key != "" {
		q.Set("key", c.key)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe dials the relay and waits for its subscribed frame
func (c *channel) Subscribe(ctx context.Context) error {
	if c.closed.Load() {
		return realtime.ErrClosed
	}
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("subscribe %s: already subscribed", c.name)
	}
	c.mu.Unlock()

	target, err := c.dialURL()
	if err != nil {
		return err
	}

	c.setStatus(realtime.StatusJoining)
	conn, _, err := c.client.dialer.DialContext(ctx, target, c.client.header)
	if err != nil {
		c.setStatus(realtime.StatusErrored)
		return fmt.Errorf("dial relay: %w", err)
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		conn.Close()
		return realtime.ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readPump(conn)

	select {
	case <-c.ready:
		return nil
	case <-c.lost:
		return fmt.Errorf("subscribe %s: relay closed the connection", c.name)
	case <-ctx.Done():
		c.setStatus(realtime.StatusErrored)
		conn.Close()
		return ctx.Err()
	}
}

func (c *channel) readPump(conn *websocket.Conn) {
	defer close(c.lost)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Debug().Err(err).Str("channel", c.name).Msg("relay connection lost")
				c.setStatus(realtime.StatusErrored)
			}
			return
		}

		// The relay coalesces queued frames with newlines
		for _, part := range bytes.Split(message, []byte{'\n'}) {
			if len(part) == 0 {
				continue
			}
			var f domain.Frame
			if err := json.Unmarshal(part, &f); err != nil {
				log.Debug().Err(err).Str("channel", c.name).Msg("dropping malformed relay frame")
				continue
			}
			c.handleFrame(f)
		}
	}
}

func (c *channel) handleFrame(f domain.Frame) {
	switch f.Type {
	case domain.FrameSubscribed:
		c.mu.Lock()
		c.ref = f.Ref
		c.mu.Unlock()
		c.setStatus(realtime.StatusSubscribed)
		c.readyOnce.Do(func() { close(c.ready) })

	case domain.FramePresenceSync:
		state := realtime.PresenceState(f.State)
		if state == nil {
			state = realtime.PresenceState{}
		}
		c.dispatch.Submit(func() { c.handlers.EmitPresence(state) })

	case domain.FrameBroadcast:
		event, payload := f.Event, f.Payload
		c.dispatch.Submit(func() { c.handlers.EmitBroadcast(event, payload) })

	case domain.FrameError:
		log.Warn().Str("channel", c.name).Str("reason", string(f.Payload)).Msg("relay rejected frame")
	}
}

func (c *channel) write(ctx context.Context, f domain.Frame) error {
	if c.Status() != realtime.StatusSubscribed {
		return realtime.ErrNotSubscribed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return realtime.ErrNotSubscribed
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	return nil
}

func (c *channel) Track(ctx context.Context, meta any) error {
	raw, err := realtime.Encode(meta)
	if err != nil {
		return err
	}
	return c.write(ctx, domain.Frame{Type: domain.FrameTrack, Payload: raw})
}

func (c *channel) Send(ctx context.Context, event string, payload any) error {
	raw, err := realtime.Encode(payload)
	if err != nil {
		return err
	}
	return c.write(ctx, domain.Frame{Type: domain.FrameBroadcast, Event: event, Payload: raw})
}

// Unsubscribe closes the websocket; the relay removes our presence on disconnect
func (c *channel) Unsubscribe() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = conn.Close()
	}
	c.status.Store(int32(realtime.StatusClosed))
	c.dispatch.Close()
	return err
}
