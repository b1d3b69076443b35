// Command ordergateway accepts trade-action commands on POST /webhook and
// forwards buys to the upstream order endpoint. It runs apart from the tick
// engine and shares no state with it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickcandles-v1/config"
	"tickcandles-v1/internal/execution"
	"tickcandles-v1/internal/logger"
	"tickcandles-v1/internal/webhook"
)

func main() {
	cfg, err := config.LoadOrderGateway()
	if err != nil {
		logger.Init("ordergateway", "info").Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.Init("ordergateway", cfg.LogLevel)
	if cfg.APIKey == "" {
		log.Warn("ORDER_API_KEY is empty, upstream will likely reject orders")
	}

	var (
		recorder execution.Recorder
		orderLog webhook.OrderLog
	)
	if cfg.JournalPath != "" {
		journal, err := execution.NewJournal(cfg.JournalPath)
		if err != nil {
			log.Error("journal init failed", "path", cfg.JournalPath, "error", err)
			os.Exit(1)
		}
		defer journal.Close()
		recorder, orderLog = journal, journal
	}

	exec := execution.NewExecutor(execution.Config{
		UpstreamURL: cfg.UpstreamURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
	}, recorder)
	handler := webhook.NewHandler(exec, orderLog, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr, "upstream", cfg.UpstreamURL)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
