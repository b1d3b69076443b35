package indicator

import "tickcandles-v1/internal/model"

// DefaultRSIPeriod is the classic Wilder lookback.
const DefaultRSIPeriod = 14

// RSI calculates the Relative Strength Index using Wilder's smoothing:
// average gain and average loss are each an SMMA over the close-to-close
// changes, seeded with a simple average of the first period changes.
// Update is O(1) per candle.
type RSI struct {
	period    int
	count     int
	prevClose float64
	gains     *SMMA
	losses    *SMMA
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	if period < 1 {
		period = DefaultRSIPeriod
	}
	return &RSI{
		period: period,
		gains:  NewSMMA(period),
		losses: NewSMMA(period),
	}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(candle model.Candle) { r.Add(candle.Close) }

// Add feeds one close price.
func (r *RSI) Add(price float64) {
	r.count++
	if r.count == 1 {
		// First close — no change yet
		r.prevClose = price
		return
	}

	gain, loss := split(price - r.prevClose)
	r.prevClose = price
	r.gains.Add(gain)
	r.losses.Add(loss)

	if r.gains.Ready() {
		r.current = rsiValue(r.gains.Value(), r.losses.Value())
	}
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

// Peek computes what RSI would be with an additional close without mutating state.
func (r *RSI) Peek(close float64) float64 {
	if !r.Ready() {
		return r.current
	}
	gain, loss := split(close - r.prevClose)
	return rsiValue(r.gains.Peek(gain), r.losses.Peek(loss))
}

// RSISeries recomputes RSI over closes from scratch and returns one value per
// close. Positions before the first full lookback window hold 0 so the output
// stays aligned 1:1 with the input.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	r := NewRSI(period)
	for i, c := range closes {
		r.Add(c)
		if r.Ready() {
			out[i] = r.Value()
		}
	}
	return out
}

// RSIPreview returns the RSI the series would have if a candle closing at
// last were appended, without building that candle. ok is false until the
// lookback window over closes is full.
func RSIPreview(closes []float64, period int, last float64) (v float64, ok bool) {
	r := NewRSI(period)
	for _, c := range closes {
		r.Add(c)
	}
	if !r.Ready() {
		return 0, false
	}
	return r.Peek(last), true
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
