// Package logger builds the harvester's slog.Logger from its Config.
//
// The -log-format flag selects a text or JSON handler and -log-level sets the
// threshold; unknown levels fall back to info. Output always goes to stdout so
// container runtimes can collect it without extra plumbing.
package logger

import (
	"log/slog"
	"os"

	"github.com/tidemark/harvest/cmd/harvester/config"
)

func New(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
