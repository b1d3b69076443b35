package model

import "time"

// RSI thresholds shown alongside the indicator.
const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

// RSI zones for the latest value.
const (
	ZoneOverbought = "overbought"
	ZoneOversold   = "oversold"
	ZoneNeutral    = "neutral"
	ZoneWarmup     = "warmup"
)

// Frame is one presentation cycle's read-only view of the pipeline.
// Slices are owned by the frame and shared read-only between presenters.
type Frame struct {
	Seq          uint64          `json:"seq"`
	At           time.Time       `json:"at"`
	Symbol       string          `json:"symbol"`
	CandleTicks  int             `json:"candle_ticks"`
	Candles      []Candle        `json:"candles"`
	RSI          []float64       `json:"rsi"` // aligned 1:1 with Candles
	RSIZone      string          `json:"rsi_zone"`
	RSIPreview   *float64        `json:"rsi_preview,omitempty"` // forming candle closed at the last buffered trade
	NewCandles   int             `json:"new_candles"` // tail of Candles built this cycle
	RecentTrades []Trade         `json:"recent_trades"` // most recent first
	Status       ConnectionState `json:"status"`
	StatusText   string          `json:"status_text"`
}

// LatestRSI returns the last RSI value, or false if there is none.
func (f *Frame) LatestRSI() (float64, bool) {
	if len(f.RSI) == 0 {
		return 0, false
	}
	return f.RSI[len(f.RSI)-1], true
}

// Zone classifies an RSI value against the overbought/oversold thresholds.
// ready is false while the lookback window is still filling.
func Zone(v float64, ready bool) string {
	switch {
	case !ready:
		return ZoneWarmup
	case v >= RSIOverbought:
		return ZoneOverbought
	case v <= RSIOversold:
		return ZoneOversold
	default:
		return ZoneNeutral
	}
}
