// Package zlog is the engine's leveled logger: a thin wrapper over
// log/slog giving every component a shared structured-logging
// convention, gated by ZCODE_DEBUG the same way the old stderr debug
// prints were.
package zlog

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

var (
	once    sync.Once
	logger  *slog.Logger
)

// Default returns the process-wide logger, initialized lazily from the
// ZCODE_DEBUG and ZCODE_LOG_FORMAT environment variables: ZCODE_DEBUG set
// to any non-empty value lowers the level to Debug; ZCODE_LOG_FORMAT=json
// switches to slog.NewJSONHandler for machine-readable output, text
// otherwise.
func Default() *slog.Logger {
	once.Do(func() {
		level := slog.LevelInfo
		if os.Getenv("ZCODE_DEBUG") != "" {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if os.Getenv("ZCODE_LOG_FORMAT") == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}
		logger = slog.New(handler)
	})
	return logger
}

// With returns a logger scoped to a component, e.g. zlog.With("session").
func With(component string) *slog.Logger {
	return Default().With("component", component)
}

// Debugf logs a debug-level printf-style message.
func Debugf(component, format string, args ...any) {
	With(component).Debug(fmt.Sprintf(format, args...))
}
