package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// Client represents a single websocket subscription to one channel
type Client struct {
	ID             string // per-connection ref
	Key            string // presence key chosen by the peer
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	maxMessageSize int64
}

// NewClient creates a new Client. An empty key falls back to the connection ref.
func NewClient(hub *Hub, conn *websocket.Conn, key string) *Client {
	id := uuid.New().String()
	if key == "" {
		key = id
	}
	return &Client{
		ID:             id,
		Key:            key,
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, 256),
		maxMessageSize: domain.MaxMessageSize,
	}
}

// SetMaxMessageSize bounds inbound frames
func (c *Client) SetMaxMessageSize(n int) {
	if n > 0 {
		c.maxMessageSize = int64(n)
	}
}

// ReadPump pumps frames from the websocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("websocket closed unexpectedly")
			}
			break
		}

		var frame domain.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID).Msg("dropping malformed frame")
			continue
		}

		c.hub.Dispatch(c, frame)
	}
}

// WritePump pumps frames from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued frames to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send adds a frame to the client's send queue
func (c *Client) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		// Buffer full
	}
}
