// Package infrastructure wires process-wide concerns: the slog logger and
// the metrics provider. Everything else receives these as dependencies.
package infrastructure

import (
	"log/slog"
	"os"
	"strings"

	"fidcetl/internal/config"
)

// InitializeLogger builds the process logger from configuration and
// installs it as the slog default.
func InitializeLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
