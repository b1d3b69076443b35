package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"

	"tickcandles-v1/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HealthStatus is the live status board. It receives connection transitions
// from the ingestion client and is read by the cycle, the API and /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	conn          model.ConnectionState
	lastTradeTime time.Time
	buffered      int
	series        int

	redisEnabled   bool
	redisConnected bool
	redisLatencyMs float64
	lastCheckAt    time.Time
	startedAt      time.Time
}

// NewHealthStatus returns a status board in the Connecting state.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		conn:      model.Connecting(),
		startedAt: time.Now(),
	}
}

// SetConnState records a connection transition.
func (h *HealthStatus) SetConnState(s model.ConnectionState) {
	h.mu.Lock()
	h.conn = s
	h.mu.Unlock()
}

// ConnState returns the latest connection state.
func (h *HealthStatus) ConnState() model.ConnectionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn
}

func (h *HealthStatus) SetLastTradeTime(t time.Time) {
	h.mu.Lock()
	h.lastTradeTime = t
	h.mu.Unlock()
}

// SetSizes records the buffer and series lengths seen by the last cycle.
func (h *HealthStatus) SetSizes(buffered, series int) {
	h.mu.Lock()
	h.buffered = buffered
	h.series = series
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.redisEnabled = true
	h.redisConnected = err == nil
	h.redisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.lastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker pings Redis every interval until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	if rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(probeCtx, rdb)
				cancel()
			}
		}
	}()
}

type healthResponse struct {
	Status         string   `json:"status"`
	Uptime         string   `json:"uptime"`
	State          string   `json:"state"`
	StatusText     string   `json:"status_text"`
	Connected      bool     `json:"connected"`
	LastTradeTime  string   `json:"last_trade_time,omitempty"`
	TradeAge       string   `json:"trade_age,omitempty"`
	BufferedTrades int      `json:"buffered_trades"`
	SeriesLen      int      `json:"series_len"`
	RedisConnected *bool    `json:"redis_connected,omitempty"`
	RedisLatencyMs *float64 `json:"redis_latency_ms,omitempty"`
	LastCheckAt    string   `json:"last_check_at,omitempty"`
}

// ServeHTTP handles /healthz. It answers 503 unless the feed is connected;
// an unreachable Redis only degrades the status.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := healthResponse{
		Status:         "healthy",
		Uptime:         time.Since(h.startedAt).Round(time.Second).String(),
		State:          h.conn.Kind.String(),
		StatusText:     h.conn.String(),
		Connected:      h.conn.Kind == model.ConnConnected,
		BufferedTrades: h.buffered,
		SeriesLen:      h.series,
	}
	if !h.lastTradeTime.IsZero() {
		resp.LastTradeTime = h.lastTradeTime.Format(time.RFC3339Nano)
		resp.TradeAge = time.Since(h.lastTradeTime).Round(time.Millisecond).String()
	}
	if h.redisEnabled {
		connected, latency := h.redisConnected, h.redisLatencyMs
		resp.RedisConnected = &connected
		resp.RedisLatencyMs = &latency
		resp.LastCheckAt = h.lastCheckAt.Format(time.RFC3339)
		if !connected {
			resp.Status = "degraded"
		}
	}
	h.mu.RUnlock()

	code := http.StatusOK
	if !resp.Connected {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
