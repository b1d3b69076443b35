// Package presenter consumes cycle frames. Presenters receive frames from a
// bus subscription and must tolerate missed frames.
package presenter

import (
	"context"
	"log/slog"

	"tickcandles-v1/internal/model"
)

// Presenter renders or forwards one frame.
type Presenter interface {
	Present(ctx context.Context, f model.Frame) error
}

// Func adapts a function to Presenter.
type Func func(ctx context.Context, f model.Frame) error

func (fn Func) Present(ctx context.Context, f model.Frame) error { return fn(ctx, f) }

// Drive feeds frames from in to p until in is closed or ctx is cancelled.
// Present errors are logged and never stop the loop.
func Drive(ctx context.Context, name string, in <-chan model.Frame, p Presenter) {
	log := slog.With("component", "presenter", "presenter", name)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-in:
			if !ok {
				return
			}
			if err := p.Present(ctx, f); err != nil {
				log.Warn("present failed", "seq", f.Seq, "error", err)
			}
		}
	}
}
