package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.URL != "wss://fstream.asterdex.com/ws" || cfg.Symbol != "btcusdt" || cfg.Stream != "aggTrade" {
		t.Errorf("unexpected feed defaults %+v", cfg.Feed)
	}
	if cfg.ReadTimeout != 5*time.Minute || cfg.ConnTimeout != 10*time.Second {
		t.Errorf("unexpected feed timeouts %+v", cfg.Feed)
	}
	if cfg.Initial != time.Second || cfg.Backoff.Max != 30*time.Second || cfg.ErrorRetryDelay != 3*time.Second {
		t.Errorf("unexpected backoff defaults %+v", cfg.Backoff)
	}
	if cfg.Ticks != 10 || cfg.TradeBuffer != 1000 || cfg.SeriesCap != 200 || cfg.RSIPeriod != 14 {
		t.Errorf("unexpected candle defaults %+v", cfg.Candles)
	}
	if cfg.RedisAddr != "" || !cfg.Terminal || cfg.MetricsAddr != ":9090" {
		t.Errorf("unexpected output defaults %+v", cfg.Outputs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FEED_SYMBOL", "ethusdt")
	t.Setenv("FEED_TRANSPORT", "gobwas")
	t.Setenv("CANDLE_TICKS", "25")
	t.Setenv("BACKOFF_MAX", "1m")
	t.Setenv("TERMINAL_OUTPUT", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Symbol != "ethusdt" || cfg.Transport != "gobwas" || cfg.Ticks != 25 ||
		cfg.Backoff.Max != time.Minute || cfg.Terminal {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"FEED_TRANSPORT", "nhooyr", "FEED_TRANSPORT"},
		{"CANDLE_TICKS", "0", "CANDLE_TICKS"},
		{"TRADE_BUFFER_CAP", "-5", "TRADE_BUFFER_CAP"},
		{"RECENT_TRADES", "5000", "RECENT_TRADES"},
		{"BACKOFF_MAX", "500ms", "BACKOFF_MAX"},
		{"FEED_URL", "http://example.com", "FEED_URL"},
		{"CYCLE_INTERVAL", "soon", "CYCLE_INTERVAL"},
		{"FEED_READ_TIMEOUT", "-1s", "FEED_READ_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

func TestLoadOrderGateway(t *testing.T) {
	t.Setenv("ORDER_API_KEY", "secret")
	cfg, err := LoadOrderGateway()
	if err != nil {
		t.Fatalf("LoadOrderGateway: %v", err)
	}
	if cfg.Addr != ":5000" || cfg.APIKey != "secret" || cfg.UpstreamURL != "https://api.asterdex.com/v1/order" {
		t.Errorf("unexpected config %+v", cfg)
	}

	t.Setenv("ORDER_UPSTREAM_URL", "not a url")
	if _, err := LoadOrderGateway(); err == nil {
		t.Error("expected invalid upstream url to fail")
	}
}
