// Package gateway pushes signals and cycle updates to WebSocket clients.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Channels carried by the hub.
const (
	ChannelSignals = "signals"
	ChannelCycle   = "cycle"
)

const (
	sendBuffer   = 256
	replayWindow = 500
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub tracks connected clients and fans broadcast envelopes out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	replay *ReplayBuffer
	now    func() time.Time

	// OnClientCount is called with the new client count after every
	// connect and disconnect.
	OnClientCount func(n int)
}

type latestEntry struct {
	Envelope []byte
	Seq      int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(replayWindow),
		now:     time.Now,
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
// Query parameter last_seq replays buffered envelopes newer than it;
// without it the latest envelope of each channel is sent.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}

	lastSeq := int64(-1)
	if v := r.URL.Query().Get("last_seq"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			lastSeq = n
		}
	}
	h.register(newClient(h, conn), lastSeq)
}

func (h *Hub) register(c *Client, lastSeq int64) {
	c.conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("ws client connected", "clients", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	c.sendInitialState(lastSeq)
	go c.writePump()
	go c.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("ws client disconnected", "clients", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence number of the last broadcast envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Publish marshals v and broadcasts it on channel.
func (h *Hub) Publish(channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(channel, data)
	return nil
}
