// Package logger builds the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"

	"journal/internal/config"
)

// New creates a slog logger for the given environment. Production gets JSON
// output for log shipping, everything else gets the readable text handler.
func New(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	if cfg.Server.Environment == config.EnvironmentProduction {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	logger := slog.New(handler).With("service", "journal")
	slog.SetDefault(logger)
	return logger
}
