package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed channels; nil receives everything.
	subMu    sync.RWMutex
	channels map[string]bool
}

// controlMsg is what clients send: SUBSCRIBE / UNSUBSCRIBE with a channel
// list, or {"ping": <ms>} for an application-level round trip.
type controlMsg struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Ping     int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}
}

func (c *Client) wants(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.channels == nil || c.channels[channel]
}

func (c *Client) subscribe(channels []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.channels == nil {
		c.channels = make(map[string]bool)
	}
	for _, ch := range channels {
		c.channels[ch] = true
	}
}

func (c *Client) unsubscribe(channels []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.channels == nil {
		// Unsubscribing from "everything" leaves the known channels minus these.
		c.channels = map[string]bool{ChannelSignals: true, ChannelCycle: true}
	}
	for _, ch := range channels {
		delete(c.channels, ch)
	}
}

// enqueue never blocks; a full buffer drops the message.
func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// sendInitialState replays what a reconnecting client missed, or the latest
// envelope per channel for a fresh one.
func (c *Client) sendInitialState(lastSeq int64) {
	if lastSeq >= 0 {
		missed, complete := c.hub.replay.Since(lastSeq)
		if !complete {
			gap, _ := json.Marshal(map[string]any{"type": "gap", "after": lastSeq})
			c.enqueue(gap)
		}
		for _, env := range missed {
			c.enqueue(env)
		}
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	for _, entry := range c.hub.latest {
		c.enqueue(entry.Envelope)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
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

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read error", "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var msg controlMsg
	if json.Unmarshal(raw, &msg) != nil {
		return
	}
	switch msg.Type {
	case "SUBSCRIBE":
		c.subscribe(msg.Channels)
	case "UNSUBSCRIBE":
		c.unsubscribe(msg.Channels)
	default:
		if msg.Ping > 0 {
			pong, _ := json.Marshal(map[string]any{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": c.hub.now().UnixMilli(),
			})
			c.enqueue(pong)
		}
	}
}
