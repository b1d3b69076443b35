package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tickcandles-v1/internal/model"
)

func TestKeyLayout(t *testing.T) {
	tests := []struct{ got, want string }{
		{LatestCandleKey(10, "btcusdt"), "candle:t10:latest:btcusdt"},
		{CandleStreamKey(10, "btcusdt"), "candle:t10:btcusdt"},
		{CandleChannel(10, "btcusdt"), "pub:candle:t10:btcusdt"},
		{LatestRSIKey(25, "ethusdt"), "rsi:t25:latest:ethusdt"},
		{RSIChannel(25, "ethusdt"), "pub:rsi:t25:ethusdt"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q want %q", tt.got, tt.want)
		}
	}
}

// unreachable returns a client whose dials fail fast.
func unreachable(t *testing.T) *goredis.Client {
	t.Helper()
	c := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func frameWithCandles(n, fresh int) model.Frame {
	f := model.Frame{Seq: 1, At: time.Now(), Symbol: "btcusdt", CandleTicks: 10, NewCandles: fresh}
	for i := 0; i < n; i++ {
		f.Candles = append(f.Candles, model.Candle{Open: 1, High: 1, Low: 1, Close: 1, TicksCount: 10})
		f.RSI = append(f.RSI, 0)
	}
	return f
}

func TestPublisher_NoNewCandlesIsNoop(t *testing.T) {
	p := NewPublisher(unreachable(t), PublisherConfig{Symbol: "btcusdt"})
	writes := 0
	p.OnWrite = func(time.Duration) { writes++ }

	if err := p.Present(context.Background(), frameWithCandles(3, 0)); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if writes != 0 {
		t.Errorf("expected no write, got %d", writes)
	}
}

func TestPublisher_BreakerSkipsAfterFailures(t *testing.T) {
	p := NewPublisher(unreachable(t), PublisherConfig{Symbol: "btcusdt", MaxFailures: 2, Cooldown: time.Minute})
	writes, skips := 0, 0
	p.OnWrite = func(time.Duration) { writes++ }
	p.OnSkip = func() { skips++ }
	var changes []BreakerState
	p.OnBreakerChange = func(_, to BreakerState) { changes = append(changes, to) }

	ctx := context.Background()
	f := frameWithCandles(2, 1)
	for i := 0; i < 2; i++ {
		if err := p.Present(ctx, f); err == nil || err == ErrCircuitOpen {
			t.Fatalf("call %d: expected a connection error, got %v", i, err)
		}
	}
	if p.Breaker().State() != StateOpen {
		t.Fatalf("expected open breaker, got %v", p.Breaker().State())
	}
	if err := p.Present(ctx, f); err != ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if writes != 2 || skips != 1 {
		t.Errorf("writes=%d skips=%d", writes, skips)
	}
	if len(changes) != 1 || changes[0] != StateOpen {
		t.Errorf("breaker changes = %v, want [open]", changes)
	}
}
