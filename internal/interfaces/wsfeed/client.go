package wsfeed

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 32
)

// client is one subscriber connection. It is owned by the hub's registry
// and never shared outside of it; all writes to the socket go through the
// send queue and a single writePump goroutine.
type client struct {
	id   string
	conn *websocket.Conn

	send     chan []byte
	sendMtx  *sync.RWMutex
	sendDone bool

	lastSeenMtx *sync.RWMutex
	lastSeen    time.Time

	closeOnce *sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		sendMtx:     &sync.RWMutex{},
		lastSeenMtx: &sync.RWMutex{},
		lastSeen:    time.Now(),
		closeOnce:   &sync.Once{},
	}
}

// trySend enqueues a payload without blocking. It reports false when the
// client's queue is full, which the hub treats as a slow consumer to evict:
// no subscriber may stall delivery to the others.
func (c *client) trySend(payload []byte) bool {
	c.sendMtx.RLock()
	defer c.sendMtx.RUnlock()

	if c.sendDone {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// writePump drains the send queue onto the socket. It exits on the first
// write failure or when the queue is closed; onError is invoked so the hub
// can drop the client.
func (c *client) writePump(onError func()) {
	for payload := range c.send {
		// nolint:errcheck
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			onError()
			return
		}
	}
}

func (c *client) touch() {
	c.lastSeenMtx.Lock()
	defer c.lastSeenMtx.Unlock()
	c.lastSeen = time.Now()
}

func (c *client) idleSince() time.Duration {
	c.lastSeenMtx.RLock()
	defer c.lastSeenMtx.RUnlock()
	return time.Since(c.lastSeen)
}

func (c *client) ping() error {
	return c.conn.WriteControl(
		websocket.PingMessage, nil, time.Now().Add(writeWait),
	)
}

// close sends a close frame with the given code and tears the socket down.
// Safe to call more than once.
func (c *client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		// nolint:errcheck
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.conn.Close()

		c.sendMtx.Lock()
		c.sendDone = true
		close(c.send)
		c.sendMtx.Unlock()
	})
}
