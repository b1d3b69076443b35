package model

import (
	"encoding/json"
	"time"
)

// Candle is an OHLCV bar built from a fixed number of consecutive trades
// (a tick candle). It is never modified after it is built.
type Candle struct {
	OpenTime   time.Time `json:"open_time"` // event time of the block's first trade
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TicksCount int       `json:"ticks_count"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes returns the close prices of candles in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}
