package presenter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"tickcandles-v1/internal/model"
)

// TerminalTimestamp displays only the time of day.
const TerminalTimestamp = "15:04:05.000"

// Terminal prints a status line, the last candles with their RSI and the
// recent trades to an io.Writer.
type Terminal struct {
	mu   sync.Mutex
	out  io.Writer
	rows int
}

// NewTerminal creates a Terminal showing up to rows candles. Output is
// os.Stdout in production and a buffer in tests.
func NewTerminal(out io.Writer, rows int) *Terminal {
	if rows <= 0 {
		rows = 10
	}
	return &Terminal{out: out, rows: rows}
}

// Present writes one frame.
func (t *Terminal) Present(_ context.Context, f model.Frame) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s  %d-tick candles  %s\n", f.At.Local().Format(TerminalTimestamp), strings.ToUpper(f.Symbol), f.CandleTicks, f.StatusText)

	if v, ok := f.LatestRSI(); ok && f.RSIZone != model.ZoneWarmup {
		fmt.Fprintf(&b, "RSI %.2f (%s, bands %.0f/%.0f)", v, f.RSIZone, model.RSIOversold, model.RSIOverbought)
		if f.RSIPreview != nil {
			fmt.Fprintf(&b, "  forming %.2f", *f.RSIPreview)
		}
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "RSI warming up (%d candles)\n", len(f.Candles))
	}

	start := len(f.Candles) - t.rows
	if start < 0 {
		start = 0
	}
	if start < len(f.Candles) {
		fmt.Fprintf(&b, "%-14s%14s%14s%14s%14s%14s%10s\n", "Open time", "Open", "High", "Low", "Close", "Volume", "RSI")
		for i := start; i < len(f.Candles); i++ {
			c := f.Candles[i]
			var rsi float64
			if i < len(f.RSI) {
				rsi = f.RSI[i]
			}
			fmt.Fprintf(&b, "%-14s%14.2f%14.2f%14.2f%14.2f%14.4f%10.2f\n",
				c.OpenTime.Local().Format(TerminalTimestamp), c.Open, c.High, c.Low, c.Close, c.Volume, rsi)
		}
	}

	if len(f.RecentTrades) > 0 {
		fmt.Fprintf(&b, "%-14s%14s%14s\n", "Trade time", "Price", "Qty")
		for _, tr := range f.RecentTrades {
			fmt.Fprintf(&b, "%-14s%14.2f%14.4f\n", tr.EventTime().Local().Format(TerminalTimestamp), tr.Price, tr.Quantity)
		}
	}
	b.WriteString("\n")

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, b.String())
	return err
}
