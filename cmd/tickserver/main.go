// Command tickserver is a demo aggTrade feed for offline runs.
//
// /ws serves bare events to streams requested with a SUBSCRIBE frame, the
// same protocol as the live futures endpoint. /stream?streams=a@aggTrade/b@aggTrade
// serves the combined {"stream":...,"data":...} envelope without a subscribe.
//
// Config (env vars):
//
//	TICK_SERVER_ADDR   listen address (default ":9001")
//	TICK_SYMBOLS       comma-separated symbols (default "btcusdt")
//	TICK_INTERVAL      interval between trades per symbol (default "100ms")
//	TICK_DROP_AFTER    close every client after this long, 0 = never (default "0s")
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"

	"tickcandles-v1/internal/logger"
	"tickcandles-v1/internal/marketdata/feed"
)

type serverConfig struct {
	Addr      string        `envconfig:"TICK_SERVER_ADDR" default:":9001"`
	Symbols   []string      `envconfig:"TICK_SYMBOLS" default:"btcusdt"`
	Interval  time.Duration `envconfig:"TICK_INTERVAL" default:"100ms"`
	DropAfter time.Duration `envconfig:"TICK_DROP_AFTER" default:"0s"`
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"info"`
}

// client is one connected subscriber.
type client struct {
	send     chan []byte
	mu       sync.RWMutex
	streams  map[string]bool
	combined bool
}

func (c *client) wants(stream string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streams[stream]
}

func (c *client) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) subscribe(streams []string) {
	c.mu.Lock()
	for _, s := range streams {
		c.streams[strings.ToLower(s)] = true
	}
	c.mu.Unlock()
}

type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub { return &hub{clients: make(map[*client]struct{})} }

func (h *hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// broadcast sends ev to every client subscribed to its stream. Slow clients
// miss trades.
func (h *hub) broadcast(stream string, ev aggTradeEvent) {
	bare, err := json.Marshal(ev)
	if err != nil {
		return
	}
	var wrapped []byte

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(stream) {
			continue
		}
		msg := bare
		if c.combined {
			if wrapped == nil {
				if wrapped, err = json.Marshal(combined{Stream: stream, Data: ev}); err != nil {
					return
				}
			}
			msg = wrapped
		}
		c.trySend(msg)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub, dropAfter time.Duration, combinedMode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("upgrade failed", "error", err)
			return
		}
		log := slog.With("remote", r.RemoteAddr, "combined", combinedMode)
		log.Info("client connected")

		c := &client{send: make(chan []byte, 256), streams: map[string]bool{}, combined: combinedMode}
		if combinedMode {
			c.subscribe(strings.Split(r.URL.Query().Get("streams"), "/"))
		}
		h.register(c)

		done := make(chan struct{})
		go readControl(conn, c, done, log)

		var drop <-chan time.Time
		if dropAfter > 0 {
			timer := time.NewTimer(dropAfter)
			defer timer.Stop()
			drop = timer.C
		}

		defer func() {
			h.unregister(c)
			conn.Close()
			log.Info("client disconnected")
		}()
		for {
			select {
			case <-done:
				return
			case <-drop:
				log.Info("dropping client")
				return
			case msg := <-c.send:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	}
}

// readControl handles SUBSCRIBE frames and acknowledges them.
func readControl(conn *websocket.Conn, c *client, done chan<- struct{}, log *slog.Logger) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub feed.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil || sub.Method != "SUBSCRIBE" {
			c.trySend([]byte(`{"code":2,"msg":"Invalid request"}`))
			continue
		}
		c.subscribe(sub.Params)
		log.Info("subscribed", "streams", sub.Params, "id", sub.ID)
		ack, _ := json.Marshal(map[string]any{"result": nil, "id": sub.ID})
		c.trySend(ack)
	}
}

func runGenerator(ctx context.Context, h *hub, symbols []*symbolState, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, s := range symbols {
				h.broadcast(s.stream(), s.next(now))
			}
		}
	}
}

func main() {
	var cfg serverConfig
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.Init("tickserver", cfg.LogLevel)

	var symbols []*symbolState
	for i, s := range cfg.Symbols {
		if strings.TrimSpace(s) != "" {
			symbols = append(symbols, newSymbolState(s, time.Now().UnixNano()+int64(i)))
		}
	}
	if len(symbols) == 0 {
		log.Error("no symbols configured via TICK_SYMBOLS")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := newHub()
	go runGenerator(ctx, h, symbols, cfg.Interval)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(h, cfg.DropAfter, false))
	mux.HandleFunc("/stream", wsHandler(h, cfg.DropAfter, true))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"tickserver"}`))
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", cfg.Addr, "symbols", cfg.Symbols, "interval", cfg.Interval)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
