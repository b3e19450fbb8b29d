// Package logger sets up structured logging and carries loggers in contexts.
package logger

import (
	"io"
	"log/slog"

	"taskdeck/internal/config"
)

// New returns a logger writing to w. Plaintext selects the text handler,
// otherwise JSON is used.
func New(cfg config.Logger, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Plaintext {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Setup installs the logger for cfg as the slog default and returns it.
func Setup(cfg config.Logger, w io.Writer) *slog.Logger {
	log := New(cfg, w)
	slog.SetDefault(log)
	return log
}
