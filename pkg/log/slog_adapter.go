package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session", event.SessionID))
	}

	switch {
	case event.Operation != nil:
		op := event.Operation
		attrs = append(attrs,
			slog.String("op", op.Op.String()),
			slog.Uint64("handle", uint64(op.Handle)),
			slog.Bool("accepted", op.Accepted),
		)
		if op.RequestedRate != 0 {
			attrs = append(attrs, slog.Duration("requested", op.RequestedRate))
		}
		if op.RevisedRate != 0 {
			attrs = append(attrs, slog.Duration("revised", op.RevisedRate))
		}
		if op.OldRate != 0 {
			attrs = append(attrs, slog.Duration("old", op.OldRate))
		}
		if op.Reason != "" {
			attrs = append(attrs, slog.String("reason", op.Reason))
		}
	case event.Interval != nil:
		attrs = append(attrs,
			slog.Duration("interval", event.Interval.Interval),
			slog.String("change", event.Interval.Change.String()),
		)
	case event.Dispatch != nil:
		attrs = append(attrs,
			slog.Duration("interval", event.Dispatch.Interval),
			slog.Int("batch_size", event.Dispatch.BatchSize),
			slog.Duration("elapsed", event.Dispatch.Elapsed),
		)
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "engine", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
