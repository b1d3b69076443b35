package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tickcandles-v1/internal/model"
)

// Metrics holds all Prometheus metrics for the tick engine.
type Metrics struct {
	// Ingestion
	TradesTotal        prometheus.Counter
	MalformedMessages  prometheus.Counter
	IgnoredMessages    prometheus.Counter
	WSReconnects       prometheus.Counter
	UnexpectedErrors   prometheus.Counter
	BackoffSeconds     prometheus.Gauge
	BackoffWaitTotal   prometheus.Counter
	ConnectionState    prometheus.Gauge // 0=connecting, 1=connected, 2=disconnected, 3=error
	LastTradeTimestamp prometheus.Gauge

	// Buffer + series
	EvictedTrades   prometheus.Counter
	CandlesTotal    prometheus.Counter
	TradeBufferLen  prometheus.Gauge
	CandleSeriesLen prometheus.Gauge
	RSILatest       prometheus.Gauge
	CycleDuration   prometheus.Histogram

	// Presentation backpressure
	CycleFrameDrops prometheus.Counter
	FrameDropsTotal *prometheus.CounterVec // labels: subscriber
	WSClientDrops   prometheus.Counter

	// Redis publisher
	RedisWriteDur            prometheus.Histogram
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisSkippedPublishes    prometheus.Counter

	// Alerts
	AlertsTotal *prometheus.CounterVec // labels: kind, result
}

// NewMetrics registers and returns all Prometheus metrics on reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_trades_total",
			Help: "Trades decoded from the feed and pushed into the buffer",
		}),
		MalformedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_malformed_messages_total",
			Help: "Feed messages dropped as malformed",
		}),
		IgnoredMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_ignored_messages_total",
			Help: "Well-formed feed messages that are not trade events",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_ws_reconnects_total",
			Help: "Connectivity failures followed by a backoff reconnect",
		}),
		UnexpectedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_unexpected_errors_total",
			Help: "Unexpected receive-loop failures retried after the fixed delay",
		}),
		BackoffSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_backoff_seconds",
			Help: "Wait applied before the current reconnect attempt",
		}),
		BackoffWaitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_backoff_wait_seconds_total",
			Help: "Time spent waiting before reconnect attempts",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_connection_state",
			Help: "Ingestion state (0=connecting, 1=connected, 2=disconnected, 3=error)",
		}),
		LastTradeTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_last_trade_timestamp_seconds",
			Help: "Exchange event time of the last decoded trade",
		}),

		EvictedTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_evicted_trades_total",
			Help: "Oldest buffered trades evicted because the buffer was full",
		}),
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_candles_total",
			Help: "Tick candles built",
		}),
		TradeBufferLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_trade_buffer_len",
			Help: "Trades waiting for aggregation",
		}),
		CandleSeriesLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_candle_series_len",
			Help: "Candles retained in the series",
		}),
		RSILatest: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_rsi_latest",
			Help: "RSI of the newest candle (0 during warmup)",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickengine_cycle_duration_seconds",
			Help:    "Aggregate + RSI recompute latency per cycle",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		CycleFrameDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_cycle_frame_drops_total",
			Help: "Frames dropped because the presentation fan-out input was full",
		}),
		FrameDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickengine_frame_drops_total",
			Help: "Frames dropped for a slow presentation subscriber",
		}, []string{"subscriber"}),
		WSClientDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_ws_client_drops_total",
			Help: "Frames dropped for slow WebSocket clients",
		}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickengine_redis_write_duration_seconds",
			Help:    "Redis publish pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisSkippedPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_redis_skipped_publishes_total",
			Help: "Publishes skipped while the Redis circuit breaker was open",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickengine_alerts_total",
			Help: "Connection alerts by state kind and result (sent, failed, suppressed)",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		m.TradesTotal,
		m.MalformedMessages,
		m.IgnoredMessages,
		m.WSReconnects,
		m.UnexpectedErrors,
		m.BackoffSeconds,
		m.BackoffWaitTotal,
		m.ConnectionState,
		m.LastTradeTimestamp,
		m.EvictedTrades,
		m.CandlesTotal,
		m.TradeBufferLen,
		m.CandleSeriesLen,
		m.RSILatest,
		m.CycleDuration,
		m.CycleFrameDrops,
		m.FrameDropsTotal,
		m.WSClientDrops,
		m.RedisWriteDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisSkippedPublishes,
		m.AlertsTotal,
	)
	return m
}

// GatewaySource is the view of the WebSocket hub exported as gauges.
type GatewaySource interface {
	ClientCount() int
	PushLatency() (p50, p95, p99 float64)
}

// RegisterGateway exports the hub's client count and frame-to-push latency
// percentiles, sampled on every scrape.
func RegisterGateway(reg prometheus.Registerer, src GatewaySource) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	quantile := func(q string, pick func(p50, p95, p99 float64) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "tickengine_ws_push_latency_ms",
			Help:        "Frame-to-push latency over recent broadcasts",
			ConstLabels: prometheus.Labels{"quantile": q},
		}, func() float64 { return pick(src.PushLatency()) })
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tickengine_ws_clients",
			Help: "Connected WebSocket presentation clients",
		}, func() float64 { return float64(src.ClientCount()) }),
		quantile("0.5", func(p50, _, _ float64) float64 { return p50 }),
		quantile("0.95", func(_, p95, _ float64) float64 { return p95 }),
		quantile("0.99", func(_, _, p99 float64) float64 { return p99 }),
	)
}

// SetConnState mirrors a connection transition into the state and backoff
// gauges.
func (m *Metrics) SetConnState(s model.ConnectionState) {
	m.ConnectionState.Set(float64(s.Kind))
	m.BackoffSeconds.Set(s.Retry.Seconds())
}

// ObserveTrade records one decoded trade.
func (m *Metrics) ObserveTrade(t model.Trade) {
	m.TradesTotal.Inc()
	m.LastTradeTimestamp.Set(float64(t.EventTimeMillis) / 1000)
}

// ObserveCycle records one cycle step.
func (m *Metrics) ObserveCycle(took time.Duration, f *model.Frame, buffered int) {
	m.CycleDuration.Observe(took.Seconds())
	m.CandlesTotal.Add(float64(f.NewCandles))
	m.CandleSeriesLen.Set(float64(len(f.Candles)))
	m.TradeBufferLen.Set(float64(buffered))
	v, _ := f.LatestRSI()
	m.RSILatest.Set(v)
}
