// Command tickengine ingests a live aggTrade stream, builds tick candles,
// computes RSI over them and presents every cycle to the terminal, WebSocket
// clients and, when configured, Redis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"tickcandles-v1/config"
	"tickcandles-v1/internal/api"
	"tickcandles-v1/internal/gateway"
	"tickcandles-v1/internal/logger"
	"tickcandles-v1/internal/marketdata/agg"
	"tickcandles-v1/internal/marketdata/bus"
	"tickcandles-v1/internal/marketdata/ws"
	"tickcandles-v1/internal/metrics"
	"tickcandles-v1/internal/model"
	"tickcandles-v1/internal/notification"
	"tickcandles-v1/internal/pipeline"
	"tickcandles-v1/internal/presenter"
	redisstore "tickcandles-v1/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tickengine:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal table owns stdout when enabled.
	logOut := os.Stdout
	if cfg.Terminal {
		logOut = os.Stderr
	}
	log := logger.InitWriter(logOut, "tickengine", cfg.LogLevel)
	log.Info("starting",
		"url", cfg.Feed.URL, "symbol", cfg.Symbol, "transport", cfg.Transport,
		"candle_ticks", cfg.Ticks, "rsi_period", cfg.RSIPeriod)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics, health and alerts ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()

	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.AlertWebhook != "" {
		notifier = notification.NewWebhookNotifier(cfg.AlertWebhook, "tickengine")
	}
	alerter := notification.NewStatusAlerter(ctx, notifier, cfg.Symbol, cfg.AlertInterval)
	alerter.OnResult = func(kind, result string) {
		prom.AlertsTotal.WithLabelValues(kind, result).Inc()
	}
	defer alerter.Wait()

	// ---- Shared state: trade buffer + candle series ----
	aggregator := agg.New(agg.Config{
		CandleTicks: cfg.Ticks,
		BufferCap:   cfg.TradeBuffer,
		SeriesCap:   cfg.SeriesCap,
	})
	aggregator.OnEvictedTrade = prom.EvictedTrades.Inc

	// ---- Ingestion client ----
	transport, err := ws.NewTransport(cfg.Transport, cfg.ConnTimeout, cfg.ReadTimeout)
	if err != nil {
		return err
	}
	client, err := ws.New(ws.Config{
		URL:             cfg.Feed.URL,
		Symbol:          cfg.Symbol,
		Stream:          cfg.Stream,
		InitialBackoff:  cfg.Initial,
		MaxBackoff:      cfg.Backoff.Max,
		ErrorRetryDelay: cfg.ErrorRetryDelay,
	}, transport, aggregator, ws.MultiStatus{health, prom, alerter})
	if err != nil {
		return err
	}
	client.OnTrade = func(t model.Trade) {
		prom.ObserveTrade(t)
		health.SetLastTradeTime(t.EventTime())
	}
	client.OnMalformed = prom.MalformedMessages.Inc
	client.OnIgnored = prom.IgnoredMessages.Inc
	client.OnReconnect = prom.WSReconnects.Inc
	client.OnUnexpected = prom.UnexpectedErrors.Inc
	client.OnBackoff = func(wait time.Duration) { prom.BackoffWaitTotal.Add(wait.Seconds()) }

	// ---- Cycle + presentation fan-out ----
	frames := make(chan model.Frame, 16)
	cycle := pipeline.New(pipeline.Config{
		Symbol:       cfg.Symbol,
		Interval:     cfg.CycleInterval,
		RSIPeriod:    cfg.RSIPeriod,
		RecentTrades: cfg.RecentTrades,
	}, aggregator, health, frames)
	cycle.OnStep = func(took time.Duration, f *model.Frame) {
		st := aggregator.Stats()
		prom.ObserveCycle(took, f, st.Buffered)
		health.SetSizes(st.Buffered, st.Series)
	}
	cycle.OnDropFrame = prom.CycleFrameDrops.Inc

	fanout := bus.New(8)
	fanout.OnDrop = func(subscriber string) {
		prom.FrameDropsTotal.WithLabelValues(subscriber).Inc()
	}

	hub := gateway.NewHub(cfg.ReplaySize)
	hub.OnDrop = prom.WSClientDrops.Inc
	metrics.RegisterGateway(reg, hub)
	defer hub.Close()

	presenters := map[string]presenter.Presenter{"ws": hub}
	if cfg.Terminal {
		presenters["terminal"] = presenter.NewTerminal(os.Stdout, cfg.RecentTrades)
	}

	// ---- Optional Redis publisher ----
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Dial(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, continuing without publisher", "addr", cfg.RedisAddr, "error", err)
		} else {
			pub := redisstore.NewPublisher(rdb, redisstore.PublisherConfig{
				Symbol:    cfg.Symbol,
				StreamCap: int64(cfg.SeriesCap),
			})
			pub.OnWrite = func(took time.Duration) { prom.RedisWriteDur.Observe(took.Seconds()) }
			pub.OnSkip = prom.RedisSkippedPublishes.Inc
			pub.OnBreakerChange = func(_, to redisstore.BreakerState) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
			}
			defer pub.Close()
			presenters["redis"] = pub
			health.StartLivenessChecker(ctx, rdb, cfg.LivenessPeriod)
			log.Info("redis publisher ready", "addr", cfg.RedisAddr)
		}
	}

	// ---- HTTP: metrics, health, snapshot API, WebSocket push ----
	srv := metrics.NewServer(cfg.MetricsAddr, health, reg, map[string]http.Handler{
		"/api/": api.NewRouter(api.Deps{
			Symbol:    cfg.Symbol,
			RSIPeriod: cfg.RSIPeriod,
			MaxTrades: cfg.TradeBuffer,
			Store:     aggregator,
			Status:    health,
		}),
		"/ws": hub,
	})

	g, gctx := errgroup.WithContext(ctx)
	for name, p := range presenters {
		name, p := name, p
		in := fanout.Subscribe(name)
		g.Go(func() error {
			presenter.Drive(gctx, name, in, p)
			return nil
		})
	}
	g.Go(func() error {
		fanout.Run(gctx, frames)
		return nil
	})
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return cycle.Run(gctx) })
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	g.Go(func() error {
		reportFanout(gctx, fanout, log)
		return nil
	})

	err = g.Wait()
	log.Info("stopped", "stats", aggregator.Stats())
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// reportFanout logs presentation queues that are filling up.
func reportFanout(ctx context.Context, fanout *bus.FanOut, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range fanout.ChannelStats() {
				if s.Cap > 0 && s.Len*2 >= s.Cap {
					log.Warn("presenter queue backing up", "subscriber", s.Name, "len", s.Len, "cap", s.Cap)
				}
			}
		}
	}
}
