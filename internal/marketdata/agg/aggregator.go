// Package agg builds tick candles from the trade stream.
//
// The trade buffer and the candle series are the only state shared between
// the ingestion goroutine and the cycle goroutine. Both live behind one
// mutex owned by the Aggregator and are never handed out directly: readers
// get copies.
package agg

import (
	"sync"

	"tickcandles-v1/internal/model"
	"tickcandles-v1/internal/ringbuf"
)

// Defaults for Config.
const (
	DefaultCandleTicks = 10
	DefaultBufferCap   = 1000
	DefaultSeriesCap   = 200
)

// Config sizes the aggregator.
type Config struct {
	CandleTicks int // trades per candle
	BufferCap   int // trade buffer capacity
	SeriesCap   int // candles retained
}

func (c *Config) defaults() {
	if c.CandleTicks <= 0 {
		c.CandleTicks = DefaultCandleTicks
	}
	if c.BufferCap <= 0 {
		c.BufferCap = DefaultBufferCap
	}
	if c.SeriesCap <= 0 {
		c.SeriesCap = DefaultSeriesCap
	}
}

// Stats is a point-in-time view of the shared state sizes.
type Stats struct {
	Buffered int
	Series   int
	Evicted  uint64
}

// Aggregator owns the trade buffer and the candle series.
// Push is called by the ingestion client; Aggregate by the cycle loop.
type Aggregator struct {
	cfg Config

	mu     sync.Mutex
	trades *ringbuf.Ring
	series []model.Candle

	// Metrics hooks (optional, set before use). Called outside the lock.
	OnEvictedTrade func()
	OnCandle       func(c model.Candle)
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	cfg.defaults()
	return &Aggregator{
		cfg:    cfg,
		trades: ringbuf.New(cfg.BufferCap),
		series: make([]model.Candle, 0, cfg.SeriesCap),
	}
}

// CandleTicks returns the number of trades per candle.
func (a *Aggregator) CandleTicks() int { return a.cfg.CandleTicks }

// Push appends a trade to the buffer, evicting the oldest buffered trade when full.
func (a *Aggregator) Push(t model.Trade) {
	a.mu.Lock()
	kept := a.trades.Push(t)
	a.mu.Unlock()

	if !kept && a.OnEvictedTrade != nil {
		a.OnEvictedTrade()
	}
}

// Aggregate drains every complete block of CandleTicks trades, appends one
// candle per block to the series, and trims the series to SeriesCap.
// It returns the candles built by this call, oldest first. With no complete
// block it is a no-op and returns nil.
func (a *Aggregator) Aggregate() []model.Candle {
	a.mu.Lock()
	blocks := a.trades.DrainBlocks(a.cfg.CandleTicks)
	if len(blocks) == 0 {
		a.mu.Unlock()
		return nil
	}

	built := make([]model.Candle, len(blocks))
	for i, block := range blocks {
		built[i] = BuildCandle(block)
	}
	a.series = append(a.series, built...)
	if over := len(a.series) - a.cfg.SeriesCap; over > 0 {
		n := copy(a.series, a.series[over:])
		a.series = a.series[:n]
	}
	a.mu.Unlock()

	if a.OnCandle != nil {
		for _, c := range built {
			a.OnCandle(c)
		}
	}
	return built
}

// BuildCandle folds a non-empty block of trades into one candle.
func BuildCandle(block []model.Trade) model.Candle {
	first := block[0]
	c := model.Candle{
		OpenTime:   first.EventTime(),
		Open:       first.Price,
		High:       first.Price,
		Low:        first.Price,
		Close:      block[len(block)-1].Price,
		TicksCount: len(block),
	}
	for _, t := range block {
		if t.Price > c.High {
			c.High = t.Price
		}
		if t.Price < c.Low {
			c.Low = t.Price
		}
		c.Volume += t.Quantity
	}
	return c
}

// Candles returns a copy of the candle series, oldest first.
func (a *Aggregator) Candles() []model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copySeries()
}

// RecentTrades returns up to n buffered trades, most recent first.
func (a *Aggregator) RecentTrades(n int) []model.Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trades.SnapshotTail(n)
}

// Snapshot returns the candle series and up to recent buffered trades taken
// under a single lock acquisition.
func (a *Aggregator) Snapshot(recent int) ([]model.Candle, []model.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copySeries(), a.trades.SnapshotTail(recent)
}

// Stats returns the current buffer and series sizes.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Buffered: a.trades.Len(),
		Series:   len(a.series),
		Evicted:  a.trades.Evicted(),
	}
}

func (a *Aggregator) copySeries() []model.Candle {
	out := make([]model.Candle, len(a.series))
	copy(out, a.series)
	return out
}
