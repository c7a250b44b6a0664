// Package logging sets up the log/slog logger shared across the module,
// following the teacher's fileformat package (which already reaches for
// log/slog rather than a third-party logging library).
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	current = newDefault()
)

func newDefault() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("FPCORE_DEBUG") != "" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if os.Getenv("FPCORE_LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// Get returns the process-wide logger.
func Get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetDefault replaces the process-wide logger, e.g. to inject a test
// logger or a caller-provided slog.Logger when fpcore is used as a
// library inside a larger service.
func SetDefault(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// ErrorContext logs err at error level with an attached stack-annotated
// value, matching the call shape the teacher's wav.go uses.
func ErrorContext(ctx context.Context, msg string, err error) {
	Get().ErrorContext(ctx, msg, slog.Any("error", err))
}
