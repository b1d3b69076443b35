// Package api serves read-only HTTP snapshots of the candle pipeline.
package api

import (
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"tickcandles-v1/internal/indicator"
	"tickcandles-v1/internal/marketdata/agg"
	"tickcandles-v1/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the guarded buffer and series. Every method returns a copy.
type Store interface {
	Candles() []model.Candle
	RecentTrades(n int) []model.Trade
	Stats() agg.Stats
	CandleTicks() int
}

// StatusSource exposes the ingestion client's latest state.
type StatusSource interface {
	ConnState() model.ConnectionState
}

// Deps wires the router.
type Deps struct {
	Symbol    string
	RSIPeriod int
	MaxTrades int // upper bound for /trades?n=
	Store     Store
	Status    StatusSource
}

// NewRouter sets up the snapshot routes.
//
//	GET /api/v1/health
//	GET /api/v1/status
//	GET /api/v1/candles
//	GET /api/v1/trades?n=10
func NewRouter(d Deps) *http.ServeMux {
	if d.RSIPeriod <= 0 {
		d.RSIPeriod = indicator.DefaultRSIPeriod
	}
	if d.MaxTrades <= 0 {
		d.MaxTrades = agg.DefaultBufferCap
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		st := d.Store.Stats()
		conn := d.Status.ConnState()
		writeJSON(w, http.StatusOK, statusResponse{
			Symbol:      d.Symbol,
			State:       conn.Kind.String(),
			StatusText:  conn.String(),
			Connected:   conn.Kind == model.ConnConnected,
			Since:       conn.At,
			CandleTicks: d.Store.CandleTicks(),
			Buffered:    st.Buffered,
			Series:      st.Series,
			Evicted:     st.Evicted,
		})
	})

	mux.HandleFunc("/api/v1/candles", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		candles := d.Store.Candles()
		rsi := indicator.RSISeries(model.Closes(candles), d.RSIPeriod)
		var latest float64
		if len(rsi) > 0 {
			latest = rsi[len(rsi)-1]
		}
		writeJSON(w, http.StatusOK, candlesResponse{
			Symbol:      d.Symbol,
			CandleTicks: d.Store.CandleTicks(),
			RSIPeriod:   d.RSIPeriod,
			Candles:     candles,
			RSI:         rsi,
			RSIZone:     model.Zone(latest, len(candles) > d.RSIPeriod),
		})
	})

	mux.HandleFunc("/api/v1/trades", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		n := 10
		if s := r.URL.Query().Get("n"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v <= 0 || v > d.MaxTrades {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "n must be between 1 and " + strconv.Itoa(d.MaxTrades)})
				return
			}
			n = v
		}
		trades := d.Store.RecentTrades(n)
		if trades == nil {
			trades = []model.Trade{}
		}
		writeJSON(w, http.StatusOK, tradesResponse{Symbol: d.Symbol, Trades: trades})
	})

	return mux
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
