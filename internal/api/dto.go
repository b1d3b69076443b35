package api

import (
	"time"

	"tickcandles-v1/internal/model"
)

type statusResponse struct {
	Symbol      string    `json:"symbol"`
	State       string    `json:"state"`
	StatusText  string    `json:"status_text"`
	Connected   bool      `json:"connected"`
	Since       time.Time `json:"since"`
	CandleTicks int       `json:"candle_ticks"`
	Buffered    int       `json:"buffered_trades"`
	Series      int       `json:"series_len"`
	Evicted     uint64    `json:"evicted_trades"`
}

type candlesResponse struct {
	Symbol      string         `json:"symbol"`
	CandleTicks int            `json:"candle_ticks"`
	RSIPeriod   int            `json:"rsi_period"`
	Candles     []model.Candle `json:"candles"`
	RSI         []float64      `json:"rsi"`
	RSIZone     string         `json:"rsi_zone"`
}

type tradesResponse struct {
	Symbol string        `json:"symbol"`
	Trades []model.Trade `json:"trades"` // most recent first
}

type errorResponse struct {
	Error string `json:"error"`
}
