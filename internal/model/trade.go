package model

import "time"

// Trade is a single aggregated trade execution reported by the feed.
// EventTimeMillis is the exchange-reported time, not the receipt time.
type Trade struct {
	Price           float64 `json:"price"`
	Quantity        float64 `json:"qty"`
	EventTimeMillis int64   `json:"event_time_ms"`
}

// EventTime returns the exchange-reported execution time in UTC.
func (t Trade) EventTime() time.Time {
	return time.UnixMilli(t.EventTimeMillis).UTC()
}
