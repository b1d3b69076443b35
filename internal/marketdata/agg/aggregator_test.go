package agg

import (
	"sync"
	"testing"
	"time"

	"tickcandles-v1/internal/model"
)

var base = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func pushRun(a *Aggregator, from, count int) {
	for i := 0; i < count; i++ {
		p := float64(from + i)
		a.Push(model.Trade{Price: p, Quantity: 1, EventTimeMillis: base.Add(time.Duration(from+i) * time.Millisecond).UnixMilli()})
	}
}

func TestAggregator_TwentyFiveTrades(t *testing.T) {
	a := New(Config{CandleTicks: 10})
	pushRun(a, 100, 25)

	built := a.Aggregate()
	if len(built) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(built))
	}

	c := built[0]
	if c.Open != 100 || c.Close != 109 || c.High != 109 || c.Low != 100 || c.Volume != 10 {
		t.Errorf("candle 0 OHLCV = %v/%v/%v/%v/%v", c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	if !c.OpenTime.Equal(base.Add(100 * time.Millisecond)) {
		t.Errorf("candle 0 open time = %v", c.OpenTime)
	}
	if c.TicksCount != 10 {
		t.Errorf("expected ticks_count=10, got %d", c.TicksCount)
	}

	c = built[1]
	if c.Open != 110 || c.Close != 119 || c.High != 119 || c.Low != 110 || c.Volume != 10 {
		t.Errorf("candle 1 OHLCV = %v/%v/%v/%v/%v", c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	if st := a.Stats(); st.Buffered != 5 || st.Series != 2 {
		t.Fatalf("expected 5 buffered / 2 series, got %+v", st)
	}
}

func TestAggregator_NoPartialCandle(t *testing.T) {
	a := New(Config{CandleTicks: 10})
	pushRun(a, 1, 9)

	if built := a.Aggregate(); built != nil {
		t.Fatalf("expected no candles from 9 trades, got %d", len(built))
	}
	if st := a.Stats(); st.Buffered != 9 || st.Series != 0 {
		t.Fatalf("no-op aggregate changed state: %+v", st)
	}

	pushRun(a, 10, 1)
	if built := a.Aggregate(); len(built) != 1 {
		t.Fatalf("expected 1 candle once the block completes, got %d", len(built))
	}
}

func TestBuildCandle_MixedPrices(t *testing.T) {
	block := []model.Trade{
		{Price: 50.5, Quantity: 0.25, EventTimeMillis: 1000},
		{Price: 52.0, Quantity: 1.5, EventTimeMillis: 1001},
		{Price: 49.75, Quantity: 2, EventTimeMillis: 1002},
		{Price: 51.0, Quantity: 0.25, EventTimeMillis: 1003},
	}
	c := BuildCandle(block)

	if c.Open != 50.5 || c.High != 52.0 || c.Low != 49.75 || c.Close != 51.0 {
		t.Errorf("unexpected OHLC %v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 4 {
		t.Errorf("expected volume=4, got %v", c.Volume)
	}
	if c.OpenTime.UnixMilli() != 1000 {
		t.Errorf("expected open time 1000ms, got %d", c.OpenTime.UnixMilli())
	}
}

func TestAggregator_SeriesCap(t *testing.T) {
	a := New(Config{CandleTicks: 2, SeriesCap: 5, BufferCap: 100})

	for round := 0; round < 4; round++ {
		pushRun(a, round*6, 6) // 3 candles per round
		a.Aggregate()
		if n := len(a.Candles()); n > 5 {
			t.Fatalf("round %d: series len %d exceeds cap", round, n)
		}
	}

	candles := a.Candles()
	if len(candles) != 5 {
		t.Fatalf("expected 5 candles, got %d", len(candles))
	}
	// 12 candles built in total; the last 5 open at prices 14, 16, 18, 20, 22.
	for i, want := range []float64{14, 16, 18, 20, 22} {
		if candles[i].Open != want {
			t.Errorf("candle %d open=%v, want %v", i, candles[i].Open, want)
		}
	}
}

func TestAggregator_EvictionHook(t *testing.T) {
	a := New(Config{CandleTicks: 10, BufferCap: 20})
	evicted := 0
	a.OnEvictedTrade = func() { evicted++ }

	pushRun(a, 0, 25)
	if evicted != 5 {
		t.Fatalf("expected 5 evictions, got %d", evicted)
	}

	built := a.Aggregate()
	if len(built) != 2 || built[0].Open != 5 {
		t.Fatalf("expected oldest trades evicted first, got %+v", built)
	}
}

func TestAggregator_Deterministic(t *testing.T) {
	run := func(chunks []int) []model.Candle {
		a := New(Config{CandleTicks: 7})
		next := 0
		for _, n := range chunks {
			pushRun(a, next, n)
			next += n
			a.Aggregate()
		}
		return a.Candles()
	}

	one := run([]int{100})
	many := run([]int{3, 11, 1, 40, 2, 43})
	if len(one) != len(many) {
		t.Fatalf("candle count depends on timing: %d vs %d", len(one), len(many))
	}
	for i := range one {
		if one[i] != many[i] {
			t.Fatalf("candle %d differs: %+v vs %+v", i, one[i], many[i])
		}
	}
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	a := New(Config{CandleTicks: 2})
	pushRun(a, 1, 5)
	a.Aggregate()

	candles, recent := a.Snapshot(10)
	if len(candles) != 2 || len(recent) != 1 || recent[0].Price != 5 {
		t.Fatalf("unexpected snapshot: %d candles, recent=%+v", len(candles), recent)
	}
	candles[0].Open = -1
	if a.Candles()[0].Open == -1 {
		t.Fatal("snapshot shares memory with the series")
	}
}

func TestAggregator_ConcurrentPushAggregate(t *testing.T) {
	const total = 50_000
	a := New(Config{CandleTicks: 10, BufferCap: total, SeriesCap: total})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pushRun(a, 0, total)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var built []model.Candle
loop:
	for {
		select {
		case <-done:
			built = append(built, a.Aggregate()...)
			break loop
		default:
			built = append(built, a.Aggregate()...)
		}
	}

	if len(built) != total/10 {
		t.Fatalf("expected %d candles, got %d", total/10, len(built))
	}
	for i, c := range built {
		if want := float64(i * 10); c.Open != want || c.Close != want+9 {
			t.Fatalf("candle %d: open=%v close=%v, want %v/%v", i, c.Open, c.Close, want, want+9)
		}
	}
}
