// Package gateway pushes cycle frames to WebSocket presentation clients.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"tickcandles-v1/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients and fans every frame out to them.
// Presenting never blocks: a client whose send queue is full misses the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  []byte // last envelope, sent to new clients
	seq     int64

	// Recent envelopes for clients reconnecting with ?since=<seq>.
	Replay *ReplayBuffer

	// Frame-to-push latency.
	Latency *LatencyTracker

	// OnDrop is called when a frame is dropped for a slow client.
	OnDrop func()

	broadcaster *Broadcaster
	log         *slog.Logger
}

// NewHub creates a Hub keeping replaySize envelopes for catch-up.
func NewHub(replaySize int) *Hub {
	h := &Hub{
		clients: make(map[*Client]bool),
		Replay:  NewReplayBuffer(replaySize),
		Latency: NewLatencyTracker(10000),
		log:     slog.With("component", "gateway"),
	}
	h.broadcaster = NewBroadcaster(h)
	return h
}

// Present broadcasts one frame to every connected client.
func (h *Hub) Present(_ context.Context, f model.Frame) error {
	return h.broadcaster.Broadcast(f)
}

// ServeHTTP upgrades the request and registers the client.
// With ?since=<seq> the client first receives every buffered envelope after
// seq; otherwise it receives the latest envelope.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}

	since := int64(-1)
	if s := r.URL.Query().Get("since"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
			since = n
		}
	}
	h.register(conn, since)
}

func (h *Hub) register(conn *websocket.Conn, since int64) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	initial := h.initialLocked(since)
	for _, env := range initial {
		client.send <- env
	}
	h.mu.Unlock()

	h.log.Info("ws client connected", "clients", count, "initial", len(initial))

	go client.writePump()
	go client.readPump()
}

// initialLocked returns the envelopes a new client starts with, capped to
// the send queue size.
func (h *Hub) initialLocked(since int64) [][]byte {
	if since < 0 {
		if h.latest == nil {
			return nil
		}
		return [][]byte{h.latest}
	}
	out := h.Replay.Since(since)
	if over := len(out) - 64; over > 0 {
		out = out[over:]
	}
	return out
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PushLatency returns the p50/p95/p99 frame-to-push latency in milliseconds.
func (h *Hub) PushLatency() (p50, p95, p99 float64) {
	st := h.Latency.Stats()
	return st.P50, st.P95, st.P99
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
