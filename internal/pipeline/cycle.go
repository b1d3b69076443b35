// Package pipeline drives the aggregate → indicator → present cycle.
//
// The cycle unit is the only caller of Aggregate. Each step drains complete
// trade blocks into candles, takes one snapshot of the series, recomputes RSI
// over it from scratch and emits a Frame without ever blocking on consumers.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"tickcandles-v1/internal/indicator"
	"tickcandles-v1/internal/model"
)

// Defaults for Config.
const (
	DefaultInterval     = time.Second
	DefaultRecentTrades = 10
)

// Config holds configuration for the cycle.
type Config struct {
	Symbol       string
	Interval     time.Duration
	RSIPeriod    int
	RecentTrades int
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = indicator.DefaultRSIPeriod
	}
	if c.RecentTrades <= 0 {
		c.RecentTrades = DefaultRecentTrades
	}
}

// Source is the guarded trade buffer and candle series.
type Source interface {
	Aggregate() []model.Candle
	Snapshot(recent int) ([]model.Candle, []model.Trade)
	CandleTicks() int
}

// StatusSource exposes the ingestion client's latest state.
type StatusSource interface {
	ConnState() model.ConnectionState
}

// Cycle is the fixed-interval aggregation loop.
type Cycle struct {
	cfg    Config
	src    Source
	status StatusSource
	out    chan<- model.Frame
	seq    uint64
	log    *slog.Logger

	// Optional hooks, called from the cycle goroutine.
	OnStep      func(took time.Duration, f *model.Frame)
	OnDropFrame func()
}

// New creates a Cycle emitting frames to out. status may be nil.
func New(cfg Config, src Source, status StatusSource, out chan<- model.Frame) *Cycle {
	cfg.defaults()
	return &Cycle{
		cfg:    cfg,
		src:    src,
		status: status,
		out:    out,
		log:    slog.With("component", "cycle"),
	}
}

// Step runs one cycle and returns the frame it built. It does not emit.
func (c *Cycle) Step() model.Frame {
	start := time.Now()

	built := c.src.Aggregate()
	candles, recent := c.src.Snapshot(c.cfg.RecentTrades)
	closes := model.Closes(candles)
	rsi := indicator.RSISeries(closes, c.cfg.RSIPeriod)

	c.seq++
	f := model.Frame{
		Seq:          c.seq,
		At:           start.UTC(),
		Symbol:       c.cfg.Symbol,
		CandleTicks:  c.src.CandleTicks(),
		Candles:      candles,
		RSI:          rsi,
		NewCandles:   len(built),
		RecentTrades: recent,
	}
	latest, _ := f.LatestRSI()
	f.RSIZone = model.Zone(latest, len(candles) > c.cfg.RSIPeriod)
	// Trades left in the buffer after Aggregate form the next candle.
	if len(recent) > 0 {
		if v, ok := indicator.RSIPreview(closes, c.cfg.RSIPeriod, recent[0].Price); ok {
			f.RSIPreview = &v
		}
	}

	if c.status != nil {
		f.Status = c.status.ConnState()
	} else {
		f.Status = model.Connecting()
	}
	f.StatusText = f.Status.String()

	if len(built) > 0 {
		c.log.Debug("candles built", "new", len(built), "series", len(candles), "rsi", latest)
	}
	if c.OnStep != nil {
		c.OnStep(time.Since(start), &f)
	}
	return f
}

// Run steps immediately and then every Interval until ctx is cancelled.
func (c *Cycle) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.log.Info("cycle started", "interval", c.cfg.Interval, "rsi_period", c.cfg.RSIPeriod)
	for {
		if ctx.Err() != nil {
			c.log.Info("cycle stopped")
			return nil
		}
		c.emit(c.Step())

		select {
		case <-ctx.Done():
			c.log.Info("cycle stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Cycle) emit(f model.Frame) {
	if c.out == nil {
		return
	}
	select {
	case c.out <- f:
	default:
		if c.OnDropFrame != nil {
			c.OnDropFrame()
		}
	}
}
