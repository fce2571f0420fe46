package logger

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler hands every record to each of its handlers. A failing handler
// does not stop the others; their errors are joined.
type teeHandler []slog.Handler

// Multi returns a logger writing through the handlers of all given loggers.
// Nil loggers are skipped. The CLI uses it to keep terminal output while
// appending JSON records to log.file.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	var tee teeHandler
	for _, l := range loggers {
		if l != nil {
			tee = append(tee, l.Handler())
		}
	}
	if len(tee) == 1 {
		return slog.New(tee[0])
	}
	return slog.New(tee)
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) derive(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
