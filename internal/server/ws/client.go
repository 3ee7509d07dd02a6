package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// subscribeMsg is the JSON text frame a client sends to change topics.
type subscribeMsg struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Topics []string `json:"topics"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	topics map[string]bool

	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]bool, len(defaultTopics)),
	}
	for _, t := range defaultTopics {
		c.topics[t] = true
	}
	return c
}

// offer queues a frame without blocking. It reports false when the client
// is too slow to keep up.
func (c *client) offer(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close ends the write pump, which then sends a close frame.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range msg.Topics {
		switch msg.Action {
		case "subscribe":
			c.topics[t] = true
		case "unsubscribe":
			delete(c.topics, t)
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("client read failed", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if json.Unmarshal(data, &msg) == nil && msg.Action != "" {
			c.apply(msg)
		}
	}
}

func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
