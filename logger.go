package roadkit

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with roadkit-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithIndex adds the persisted index name to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogPrepare logs an index build.
func (l *Logger) LogPrepare(ctx context.Context, edges, depth, leaves int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "prepare failed",
			"edges", edges,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index prepared",
		"edges", edges,
		"depth", depth,
		"leaves", leaves,
		"took", took,
	)
}

// LogFindClosest logs a single lookup.
func (l *Logger) LogFindClosest(ctx context.Context, lat, lon float64, edge int32, distance float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "find closest failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "find closest completed",
		"lat", lat,
		"lon", lon,
		"edge", edge,
		"distance_m", distance,
	)
}

// LogBatch logs a batch lookup.
func (l *Logger) LogBatch(ctx context.Context, count, unmatched int, took time.Duration, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "batch lookup failed",
			"count", count,
			"error", err,
		)
	case unmatched > 0:
		l.WarnContext(ctx, "batch lookup completed with unmatched points",
			"count", count,
			"unmatched", unmatched,
			"took", took,
		)
	default:
		l.DebugContext(ctx, "batch lookup completed",
			"count", count,
			"took", took,
		)
	}
}

// LogFlush logs an index flush.
func (l *Logger) LogFlush(ctx context.Context, bytes int64, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index flushed",
		"bytes", bytes,
		"took", took,
	)
}

// LogLoad logs an index load.
func (l *Logger) LogLoad(ctx context.Context, found bool, took time.Duration, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "load failed",
			"error", err,
		)
	case !found:
		l.InfoContext(ctx, "no persisted index found")
	default:
		l.InfoContext(ctx, "index loaded",
			"took", took,
		)
	}
}
