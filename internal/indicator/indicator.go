// Package indicator provides technical indicator calculations over candle data.
//
// Streaming indicators implement the Indicator interface and update in O(1)
// per candle. Series functions recompute a whole aligned output from an
// immutable input slice and keep no state between calls.
package indicator

import "tickcandles-v1/internal/model"

// Indicator is the interface for streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "RSI").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if a candle with this close price
	// were added next, WITHOUT mutating internal state.
	Peek(close float64) float64
}

var (
	_ Indicator = (*RSI)(nil)
	_ Indicator = (*SMMA)(nil)
)
