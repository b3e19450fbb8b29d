package logger

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// Context returns a copy of ctx carrying log.
func Context(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	log := ctx.Value(loggerKey{})
	if log != nil {
		return log.(*slog.Logger)
	}
	return slog.Default()
}
