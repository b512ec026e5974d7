package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler sends each record to every member that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = h.WithGroup(name)
	}
	return next
}

// TeeLogger returns a logger that also writes to extra. Nil handlers are
// skipped.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	var members teeHandler
	if base != nil {
		members = append(members, base.Handler())
	}
	for _, h := range extra {
		if h != nil {
			members = append(members, h)
		}
	}
	switch len(members) {
	case 0:
		return NewNop()
	case 1:
		return slog.New(members[0])
	default:
		return slog.New(members)
	}
}
