// Package logging wraps the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

var logger *slog.Logger

// Init configures the global logger. Format is "text" or "json".
func Init(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// Logger returns the global logger, initializing defaults on first use.
func Logger() *slog.Logger {
	if logger == nil {
		Init("info", "text")
	}
	return logger
}

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }

func Info(msg string, args ...any) { Logger().Info(msg, args...) }

func Warn(msg string, args ...any) { Logger().Warn(msg, args...) }

func Error(msg string, args ...any) { Logger().Error(msg, args...) }
