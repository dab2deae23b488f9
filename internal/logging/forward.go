package logging

import (
	"context"
	"log/slog"
)

// LogSink receives log lines mirrored from the slog pipeline; the status
// tracker's AddLog satisfies it.
type LogSink interface {
	AddLog(level, message string)
}

// forwardHandler tees records into a LogSink after the wrapped handler
// processed them, so the dashboard's recent-log ring mirrors the real log.
type forwardHandler struct {
	inner slog.Handler
	sink  LogSink
}

func (h forwardHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h forwardHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.inner.Handle(ctx, r)
	if r.Level >= slog.LevelInfo {
		h.sink.AddLog(r.Level.String(), r.Message)
	}
	return err
}

func (h forwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return forwardHandler{inner: h.inner.WithAttrs(attrs), sink: h.sink}
}

func (h forwardHandler) WithGroup(name string) slog.Handler {
	return forwardHandler{inner: h.inner.WithGroup(name), sink: h.sink}
}

// WithSink returns a logger that mirrors info-and-above records into sink
// in addition to the logger's own output.
func WithSink(logger *slog.Logger, sink LogSink) *slog.Logger {
	if sink == nil {
		return logger
	}
	return slog.New(forwardHandler{inner: logger.Handler(), sink: sink})
}
