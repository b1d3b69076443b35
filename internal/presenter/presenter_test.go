package presenter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tickcandles-v1/internal/model"
)

func sampleFrame() model.Frame {
	open := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	candles := make([]model.Candle, 16)
	rsi := make([]float64, 16)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = model.Candle{OpenTime: open.Add(time.Duration(i) * time.Second), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 10, TicksCount: 10}
	}
	rsi[15] = 82.5
	return model.Frame{
		Seq:          3,
		At:           open,
		Symbol:       "btcusdt",
		CandleTicks:  10,
		Candles:      candles,
		RSI:          rsi,
		RSIZone:      model.ZoneOverbought,
		RecentTrades: []model.Trade{{Price: 116.25, Quantity: 0.5, EventTimeMillis: open.UnixMilli()}},
		StatusText:   "Connected, subscribed to btcusdt@aggTrade",
	}
}

func TestTerminal_Present(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, 5)
	if err := term.Present(context.Background(), sampleFrame()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"BTCUSDT", "10-tick candles", "Connected, subscribed to btcusdt@aggTrade", "RSI 82.50 (overbought", "116.25"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Only the last 5 candles are listed.
	if strings.Contains(out, "100.50") || !strings.Contains(out, "115.50") {
		t.Errorf("expected only the last 5 candles:\n%s", out)
	}
}

func TestTerminal_Warmup(t *testing.T) {
	var buf bytes.Buffer
	f := model.Frame{Symbol: "btcusdt", RSIZone: model.ZoneWarmup, StatusText: "Connecting to feed..."}
	if err := NewTerminal(&buf, 0).Present(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "RSI warming up (0 candles)") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestDrive_ContinuesAfterErrors(t *testing.T) {
	in := make(chan model.Frame, 3)
	var seen []uint64
	p := Func(func(_ context.Context, f model.Frame) error {
		seen = append(seen, f.Seq)
		if f.Seq == 1 {
			return errors.New("render failed")
		}
		return nil
	})

	in <- model.Frame{Seq: 1}
	in <- model.Frame{Seq: 2}
	close(in)
	Drive(context.Background(), "test", in, p)

	if len(seen) != 2 || seen[1] != 2 {
		t.Fatalf("expected both frames presented, got %v", seen)
	}
}
