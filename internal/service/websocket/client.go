package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
	replySlots = 8
)

// Client is one connected viewer. Only its write pump writes to conn.
type Client struct {
	conn *websocket.Conn

	snapshots chan []byte // holds at most the newest snapshot
	replies   chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection and applies read limits.
func NewClient(conn *websocket.Conn) *Client {
	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &Client{
		conn:      conn,
		snapshots: make(chan []byte, 1),
		replies:   make(chan []byte, replySlots),
		done:      make(chan struct{}),
	}
}

// Conn returns the underlying connection for reading.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// offer replaces any undelivered snapshot with data. Only the hub calls it.
func (c *Client) offer(data []byte) {
	select {
	case <-c.snapshots:
	default:
	}
	select {
	case c.snapshots <- data:
	default:
	}
}

// Reply queues a direct answer to this client. It returns false if the
// client is gone or too far behind.
func (c *Client) Reply(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.replies <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// WritePump delivers snapshots and replies until the client is closed
// or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.snapshots:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case data := <-c.replies:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
