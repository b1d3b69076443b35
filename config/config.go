// Package config loads process configuration from the environment, after
// an optional .env file.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Feed configures the market-data websocket.
type Feed struct {
	URL         string        `envconfig:"FEED_URL" default:"wss://fstream.asterdex.com/ws"`
	Symbol      string        `envconfig:"FEED_SYMBOL" default:"btcusdt"`
	Stream      string        `envconfig:"FEED_STREAM" default:"aggTrade"`
	Transport   string        `envconfig:"FEED_TRANSPORT" default:"gorilla"`
	ConnTimeout time.Duration `envconfig:"FEED_CONN_TIMEOUT" default:"10s"`
	ReadTimeout time.Duration `envconfig:"FEED_READ_TIMEOUT" default:"5m"`
}

// Backoff configures reconnect delays.
type Backoff struct {
	Initial         time.Duration `envconfig:"BACKOFF_INITIAL" default:"1s"`
	Max             time.Duration `envconfig:"BACKOFF_MAX" default:"30s"`
	ErrorRetryDelay time.Duration `envconfig:"ERROR_RETRY_DELAY" default:"3s"`
}

// Candles sizes the buffer, the series and the indicator.
type Candles struct {
	Ticks         int           `envconfig:"CANDLE_TICKS" default:"10"`
	TradeBuffer   int           `envconfig:"TRADE_BUFFER_CAP" default:"1000"`
	SeriesCap     int           `envconfig:"CANDLE_SERIES_CAP" default:"200"`
	RSIPeriod     int           `envconfig:"RSI_PERIOD" default:"14"`
	CycleInterval time.Duration `envconfig:"CYCLE_INTERVAL" default:"1s"`
	RecentTrades  int           `envconfig:"RECENT_TRADES" default:"10"`
}

// Outputs configures presentation, metrics and optional sinks.
type Outputs struct {
	MetricsAddr    string        `envconfig:"METRICS_ADDR" default:":9090"`
	Terminal       bool          `envconfig:"TERMINAL_OUTPUT" default:"true"`
	ReplaySize     int           `envconfig:"WS_REPLAY_SIZE" default:"256"`
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	AlertWebhook   string        `envconfig:"ALERT_WEBHOOK_URL"`
	AlertInterval  time.Duration `envconfig:"ALERT_INTERVAL" default:"30s"`
	LivenessPeriod time.Duration `envconfig:"REDIS_LIVENESS_INTERVAL" default:"15s"`
}

// Engine is the configuration of cmd/tickengine.
type Engine struct {
	Feed
	Backoff
	Candles
	Outputs
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// OrderGateway is the configuration of cmd/ordergateway.
type OrderGateway struct {
	Addr        string        `envconfig:"ORDER_GATEWAY_ADDR" default:":5000"`
	UpstreamURL string        `envconfig:"ORDER_UPSTREAM_URL" default:"https://api.asterdex.com/v1/order"`
	APIKey      string        `envconfig:"ORDER_API_KEY"`
	JournalPath string        `envconfig:"ORDER_JOURNAL_PATH" default:"data/orders.db"`
	Timeout     time.Duration `envconfig:"ORDER_UPSTREAM_TIMEOUT" default:"10s"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the engine configuration. A missing .env file is not an error.
func Load() (*Engine, error) {
	_ = godotenv.Load()

	var cfg Engine
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Engine) Validate() error {
	if _, err := url.Parse(c.Feed.URL); err != nil || !strings.HasPrefix(c.Feed.URL, "ws") {
		return errors.Errorf("config: FEED_URL %q is not a websocket url", c.Feed.URL)
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return errors.New("config: FEED_SYMBOL is required")
	}
	switch c.Transport {
	case "gorilla", "gobwas":
	default:
		return errors.Errorf("config: unknown FEED_TRANSPORT %q", c.Transport)
	}
	if c.ConnTimeout < 0 || c.ReadTimeout < 0 {
		return errors.New("config: FEED_CONN_TIMEOUT and FEED_READ_TIMEOUT must not be negative")
	}
	if c.Initial <= 0 || c.Backoff.Max < c.Initial || c.ErrorRetryDelay <= 0 {
		return errors.New("config: backoff delays must be positive and BACKOFF_MAX >= BACKOFF_INITIAL")
	}
	for name, v := range map[string]int{
		"CANDLE_TICKS":      c.Ticks,
		"TRADE_BUFFER_CAP":  c.TradeBuffer,
		"CANDLE_SERIES_CAP": c.SeriesCap,
		"RSI_PERIOD":        c.RSIPeriod,
		"RECENT_TRADES":     c.RecentTrades,
	} {
		if v <= 0 {
			return errors.Errorf("config: %s must be positive, got %d", name, v)
		}
	}
	if c.RecentTrades > c.TradeBuffer {
		return errors.Errorf("config: RECENT_TRADES %d exceeds TRADE_BUFFER_CAP %d", c.RecentTrades, c.TradeBuffer)
	}
	if c.CycleInterval <= 0 {
		return errors.New("config: CYCLE_INTERVAL must be positive")
	}
	return nil
}

// LoadOrderGateway reads the order gateway configuration.
func LoadOrderGateway() (*OrderGateway, error) {
	_ = godotenv.Load()

	var cfg OrderGateway
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	if _, err := url.ParseRequestURI(cfg.UpstreamURL); err != nil {
		return nil, errors.Wrapf(err, "config: ORDER_UPSTREAM_URL %q", cfg.UpstreamURL)
	}
	return &cfg, nil
}
