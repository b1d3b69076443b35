package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tickcandles-v1/internal/model"
)

// DefaultAlertInterval is the minimum gap between two alerts of one kind.
const DefaultAlertInterval = 30 * time.Second

// StatusAlerter turns connection transitions into alerts. Disconnected and
// Error states alert at most once per kind per interval; the first Connected
// after an alert sends a recovery notice. Delivery is asynchronous so the
// ingestion loop never waits on the notifier.
type StatusAlerter struct {
	ctx      context.Context
	notifier Notifier
	symbol   string
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu       sync.Mutex
	lastSent map[model.ConnKind]time.Time
	alerted  bool
	wg       sync.WaitGroup

	// OnResult is called with the state kind and "sent", "failed" or "suppressed".
	OnResult func(kind, result string)
}

// NewStatusAlerter creates an alerter. Sends are bound to ctx.
func NewStatusAlerter(ctx context.Context, n Notifier, symbol string, interval time.Duration) *StatusAlerter {
	if interval <= 0 {
		interval = DefaultAlertInterval
	}
	return &StatusAlerter{
		ctx:      ctx,
		notifier: n,
		symbol:   symbol,
		interval: interval,
		now:      time.Now,
		log:      slog.With("component", "alerter"),
		lastSent: make(map[model.ConnKind]time.Time),
	}
}

// SetConnState implements the ingestion client's status reporter.
func (a *StatusAlerter) SetConnState(s model.ConnectionState) {
	switch s.Kind {
	case model.ConnDisconnected, model.ConnError:
		now := a.now()
		a.mu.Lock()
		if last, ok := a.lastSent[s.Kind]; ok && now.Sub(last) < a.interval {
			a.mu.Unlock()
			a.result(s.Kind, "suppressed")
			return
		}
		a.lastSent[s.Kind] = now
		a.alerted = true
		a.mu.Unlock()

		level := AlertWarning
		if s.Kind == model.ConnError {
			level = AlertCritical
		}
		a.dispatch(s.Kind, Alert{
			Level:   level,
			Title:   fmt.Sprintf("%s feed %s", a.symbol, s.Kind),
			Message: s.String(),
		})

	case model.ConnConnected:
		a.mu.Lock()
		recovered := a.alerted
		a.alerted = false
		a.mu.Unlock()
		if recovered {
			a.dispatch(s.Kind, Alert{
				Level:   AlertInfo,
				Title:   fmt.Sprintf("%s feed recovered", a.symbol),
				Message: s.String(),
			})
		}
	}
}

func (a *StatusAlerter) dispatch(kind model.ConnKind, alert Alert) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()
		if err := a.notifier.Send(ctx, alert); err != nil {
			a.log.Warn("alert delivery failed", "title", alert.Title, "error", err)
			a.result(kind, "failed")
			return
		}
		a.result(kind, "sent")
	}()
}

func (a *StatusAlerter) result(kind model.ConnKind, result string) {
	if a.OnResult != nil {
		a.OnResult(kind.String(), result)
	}
}

// Wait blocks until in-flight alerts are delivered or abandoned.
func (a *StatusAlerter) Wait() {
	a.wg.Wait()
}
