// Package hub wraps one websocket connection with the buffered send channel
// and read/write pumps the session handler is built on. Each connection is
// owned by exactly one Client; frames from a connection are processed
// strictly sequentially by its read pump.
package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studyroomhq/studyroom-chat/internal/config"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
)

// Client is one live websocket connection bound to a room and a handshake
// username. It implements registry.Conn.
type Client struct {
	id       string
	Room     string
	Username string

	conn *websocket.Conn
	send chan []byte
	cfg  config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded websocket connection.
func NewClient(id string, conn *websocket.Conn, room, username string, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:       id,
		Room:     room,
		Username: username,
		conn:     conn,
		send:     make(chan []byte, buffer),
		cfg:      cfg,
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// TrySend queues a payload without blocking. False means the connection is
// closed or its buffer is full; callers treat that as a failed delivery.
func (c *Client) TrySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close marks the client dead and releases the write pump. Safe to call more
// than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump consumes inbound frames until the connection drops, invoking
// handler for each frame in order. onClose runs exactly once afterwards.
func (c *Client) ReadPump(handler func(raw []byte), onClose func()) {
	defer func() {
		c.Close()
		c.conn.Close()
		onClose()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.L().Warn().Err(err).Str(log.FieldConnID, c.id).Msg("websocket read error")
			}
			return
		}

		handler(message)
	}
}

// WritePump drains the send channel to the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
