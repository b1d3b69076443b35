// Package redis publishes closed tick candles and the latest RSI to Redis.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"

	"tickcandles-v1/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultLatestTTL = 30 * time.Minute

// Options configures the Redis connection.
type Options struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Dial connects to Redis and pings the server.
func Dial(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Key layout. The tick count is part of every key so series built with a
// different candle size never mix.

func LatestCandleKey(ticks int, symbol string) string {
	return "candle:t" + strconv.Itoa(ticks) + ":latest:" + symbol
}

func CandleStreamKey(ticks int, symbol string) string {
	return "candle:t" + strconv.Itoa(ticks) + ":" + symbol
}

func CandleChannel(ticks int, symbol string) string {
	return "pub:candle:t" + strconv.Itoa(ticks) + ":" + symbol
}

func LatestRSIKey(ticks int, symbol string) string {
	return "rsi:t" + strconv.Itoa(ticks) + ":latest:" + symbol
}

func RSIChannel(ticks int, symbol string) string {
	return "pub:rsi:t" + strconv.Itoa(ticks) + ":" + symbol
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Symbol      string
	StreamCap   int64 // XADD MAXLEN, normally the candle series cap
	MaxFailures int
	Cooldown    time.Duration
}

// rsiMessage is the payload written for the newest RSI value.
type rsiMessage struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
	Ready  bool    `json:"ready"`
	Zone   string  `json:"zone"`
	Seq    uint64  `json:"seq"`
	TS     int64   `json:"ts"`
}

// Publisher writes each cycle's new candles and the latest RSI in one
// pipeline. It implements presenter.Presenter.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	cfg     PublisherConfig
	log     *slog.Logger

	OnWrite         func(took time.Duration)
	OnSkip          func()
	OnBreakerChange func(from, to BreakerState)
}

// NewPublisher wraps an existing client.
func NewPublisher(client *goredis.Client, cfg PublisherConfig) *Publisher {
	if cfg.StreamCap <= 0 {
		cfg.StreamCap = 200
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	p := &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(cfg.MaxFailures, cfg.Cooldown),
		cfg:     cfg,
		log:     slog.With("component", "redis"),
	}
	p.breaker.OnStateChange = func(from, to BreakerState) {
		p.log.Warn("circuit breaker transition", "from", from.String(), "to", to.String())
		if p.OnBreakerChange != nil {
			p.OnBreakerChange(from, to)
		}
	}
	return p
}

// Breaker exposes the breaker state.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// Present publishes the frame's new candles. Frames without new candles are
// a no-op. While the breaker is open the frame is skipped and
// ErrCircuitOpen is returned.
func (p *Publisher) Present(ctx context.Context, f model.Frame) error {
	if f.NewCandles <= 0 || len(f.Candles) == 0 {
		return nil
	}
	err := p.breaker.Execute(func() error {
		start := time.Now()
		err := p.write(ctx, f)
		if p.OnWrite != nil {
			p.OnWrite(time.Since(start))
		}
		return err
	})
	if err == ErrCircuitOpen && p.OnSkip != nil {
		p.OnSkip()
	}
	return err
}

func (p *Publisher) write(ctx context.Context, f model.Frame) error {
	ticks := f.CandleTicks
	symbol := f.Symbol
	if symbol == "" {
		symbol = p.cfg.Symbol
	}
	fresh := f.NewCandles
	if fresh > len(f.Candles) {
		fresh = len(f.Candles)
	}

	pipe := p.client.Pipeline()
	streamKey := CandleStreamKey(ticks, symbol)
	channel := CandleChannel(ticks, symbol)
	var last string
	for i := len(f.Candles) - fresh; i < len(f.Candles); i++ {
		data := string(f.Candles[i].JSON())
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: streamKey,
			MaxLen: p.cfg.StreamCap,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Publish(ctx, channel, data)
		last = data
	}
	pipe.Set(ctx, LatestCandleKey(ticks, symbol), last, defaultLatestTTL)

	v, ready := f.LatestRSI()
	msg, err := json.Marshal(rsiMessage{
		Symbol: symbol,
		Value:  v,
		Ready:  ready,
		Zone:   f.RSIZone,
		Seq:    f.Seq,
		TS:     f.At.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode rsi: %w", err)
	}
	pipe.Set(ctx, LatestRSIKey(ticks, symbol), msg, defaultLatestTTL)
	pipe.Publish(ctx, RSIChannel(ticks, symbol), msg)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline (%d candles): %w", fresh, err)
	}
	return nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
