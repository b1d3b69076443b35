package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"tickcandles-v1/internal/marketdata/agg"
	"tickcandles-v1/internal/model"
)

type fixedStatus struct{ s model.ConnectionState }

func (f fixedStatus) ConnState() model.ConnectionState { return f.s }

func push(a *agg.Aggregator, prices ...float64) {
	for i, p := range prices {
		a.Push(model.Trade{Price: p, Quantity: 1, EventTimeMillis: int64(1000 + i)})
	}
}

func rising(from, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(from + i)
	}
	return out
}

func TestCycle_StepBuildsFrame(t *testing.T) {
	a := agg.New(agg.Config{CandleTicks: 10})
	push(a, rising(100, 25)...)

	c := New(Config{Symbol: "btcusdt", RSIPeriod: 14, RecentTrades: 3}, a,
		fixedStatus{model.Connected("btcusdt@aggTrade")}, nil)
	f := c.Step()

	if f.Seq != 1 || f.Symbol != "btcusdt" || f.CandleTicks != 10 {
		t.Fatalf("unexpected header %+v", f)
	}
	if len(f.Candles) != 2 || f.NewCandles != 2 {
		t.Fatalf("expected 2 new candles, got %d/%d", len(f.Candles), f.NewCandles)
	}
	if len(f.RSI) != len(f.Candles) {
		t.Fatalf("RSI len %d not aligned with %d candles", len(f.RSI), len(f.Candles))
	}
	if f.RSIZone != model.ZoneWarmup {
		t.Errorf("expected warmup zone, got %s", f.RSIZone)
	}
	if len(f.RecentTrades) != 3 || f.RecentTrades[0].Price != 124 || f.RecentTrades[2].Price != 122 {
		t.Errorf("unexpected recent trades %+v", f.RecentTrades)
	}
	if f.RSIPreview != nil {
		t.Errorf("no preview expected during warmup, got %v", *f.RSIPreview)
	}
	if f.StatusText != "Connected, subscribed to btcusdt@aggTrade" {
		t.Errorf("unexpected status text %q", f.StatusText)
	}

	// Nothing new to aggregate: same series, no new candles.
	f = c.Step()
	if f.Seq != 2 || f.NewCandles != 0 || len(f.Candles) != 2 {
		t.Fatalf("idle step changed series: %+v", f)
	}
}

func TestCycle_RSIZoneAfterWarmup(t *testing.T) {
	a := agg.New(agg.Config{CandleTicks: 2})
	push(a, rising(100, 40)...) // 20 rising candles

	c := New(Config{RSIPeriod: 14}, a, nil, nil)
	f := c.Step()

	v, ok := f.LatestRSI()
	if !ok || v != 100 {
		t.Fatalf("expected RSI 100 for a rising run, got %v (ok=%v)", v, ok)
	}
	if f.RSIZone != model.ZoneOverbought {
		t.Fatalf("expected overbought, got %s", f.RSIZone)
	}
	if f.Status.Kind != model.ConnConnecting {
		t.Fatalf("expected connecting without a status source, got %s", f.Status.Kind)
	}
}

func TestCycle_RSIPreviewForFormingCandle(t *testing.T) {
	a := agg.New(agg.Config{CandleTicks: 2})
	push(a, rising(100, 40)...)

	c := New(Config{RSIPeriod: 14}, a, nil, nil)
	if f := c.Step(); f.RSIPreview != nil {
		t.Fatalf("empty buffer must not produce a preview, got %v", *f.RSIPreview)
	}

	a.Push(model.Trade{Price: 50, Quantity: 1, EventTimeMillis: 5000})
	f := c.Step()
	if f.NewCandles != 0 {
		t.Fatalf("a single pending trade must not build a candle")
	}
	if f.RSIPreview == nil {
		t.Fatal("expected a preview for the forming candle")
	}
	latest, _ := f.LatestRSI()
	if *f.RSIPreview >= latest {
		t.Errorf("a sharp drop should pull the preview below %v, got %v", latest, *f.RSIPreview)
	}
}

func TestCycle_EmitNeverBlocks(t *testing.T) {
	a := agg.New(agg.Config{})
	out := make(chan model.Frame) // unbuffered, never read
	c := New(Config{}, a, nil, out)

	dropped := 0
	c.OnDropFrame = func() { dropped++ }

	done := make(chan struct{})
	go func() {
		c.emit(c.Step())
		c.emit(c.Step())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full output")
	}
	if dropped != 2 {
		t.Fatalf("expected 2 drops, got %d", dropped)
	}
}

func TestCycle_RunStopsOnCancel(t *testing.T) {
	a := agg.New(agg.Config{CandleTicks: 10})
	push(a, rising(1, 10)...)

	out := make(chan model.Frame, 4)
	c := New(Config{Interval: 10 * time.Millisecond}, a, nil, out)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	select {
	case f := <-out:
		if f.Seq != 1 || f.NewCandles != 1 {
			t.Fatalf("unexpected first frame %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame emitted")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
