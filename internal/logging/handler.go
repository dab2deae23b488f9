package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"
)

// Config controls the rotating file handler built by SetupLogRotation.
type Config struct {
	File       string
	Level      string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	AddSource  bool
}

// handler wraps an slog.Handler so every record picks up the attributes
// stashed in its context by WithAttrs/With/ReleaseContext.
type handler struct {
	inner slog.Handler
	hook  dataHook
}

func wrap(h slog.Handler) handler {
	return handler{inner: h}
}

func (h handler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h handler) Handle(ctx context.Context, r slog.Record) error {
	r = r.Clone()
	h.hook.run(ctx, &r)
	return h.inner.Handle(ctx, r)
}

func (h handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handler{inner: h.inner.WithAttrs(attrs)}
}

func (h handler) WithGroup(name string) slog.Handler {
	return handler{inner: h.inner.WithGroup(name)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogRotation configures slog with rotation via natefinch/lumberjack.
// With no file configured it logs to stdout only; otherwise it logs to both
// stdout and the rotated file.
func SetupLogRotation(cfg Config) *slog.Logger {
	var writer io.Writer = os.Stdout

	if cfg.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writer = io.MultiWriter(os.Stdout, fileWriter)
	}

	base := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	})

	return slog.New(wrap(base))
}
