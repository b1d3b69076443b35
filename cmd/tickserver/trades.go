package main

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// aggTradeEvent is the futures aggTrade payload.
type aggTradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	AggID     int64  `json:"a"`
	Price     string `json:"p"`
	Qty       string `json:"q"`
	FirstID   int64  `json:"f"`
	LastID    int64  `json:"l"`
	TradeTime int64  `json:"T"`
	Maker     bool   `json:"m"`
}

// combined is the /stream envelope.
type combined struct {
	Stream string        `json:"stream"`
	Data   aggTradeEvent `json:"data"`
}

// symbolState is the random walk of one symbol.
type symbolState struct {
	Symbol string // lower case, e.g. "btcusdt"
	Price  float64
	aggID  int64
	rng    *rand.Rand
}

var startPrices = map[string]float64{
	"btcusdt": 67000,
	"ethusdt": 3500,
	"solusdt": 150,
}

func newSymbolState(symbol string, seed int64) *symbolState {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	price := startPrices[symbol]
	if price == 0 {
		price = 100
	}
	return &symbolState{Symbol: symbol, Price: price, rng: rand.New(rand.NewSource(seed))}
}

// next moves the price by up to ±0.05% and returns one trade at now.
func (s *symbolState) next(now time.Time) aggTradeEvent {
	pct := (s.rng.Float64()*0.1 - 0.05) / 100
	s.Price = math.Max(0.01, s.Price*(1+pct))
	s.aggID++
	ms := now.UnixMilli()
	return aggTradeEvent{
		EventType: "aggTrade",
		EventTime: ms,
		Symbol:    strings.ToUpper(s.Symbol),
		AggID:     s.aggID,
		Price:     strconv.FormatFloat(s.Price, 'f', 2, 64),
		Qty:       strconv.FormatFloat(0.001+s.rng.Float64()*0.5, 'f', 3, 64),
		FirstID:   s.aggID * 3,
		LastID:    s.aggID*3 + 2,
		TradeTime: ms - 2,
		Maker:     s.rng.Intn(2) == 0,
	}
}

func (s *symbolState) stream() string { return s.Symbol + "@aggTrade" }
