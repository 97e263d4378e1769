package bumpspace

import (
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with space-specific helpers.
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

// WithSpace tags every record with the space name.
func (l *Logger) WithSpace(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("space", name),
	}
}

// LogCreate logs a successful space creation.
func (l *Logger) LogCreate(begin uintptr, capacity uintptr) {
	l.Info("space created",
		"begin", begin,
		"capacity", humanize.IBytes(uint64(capacity)),
	)
}

// LogReservationFailure logs a failed region reservation.
func (l *Logger) LogReservationFailure(capacity uintptr, err error) {
	l.Error("failed to allocate pages for alloc space",
		"size", humanize.IBytes(uint64(capacity)),
		"error", err,
	)
}

// LogClear logs a space reset.
func (l *Logger) LogClear(released uintptr, err error) {
	if err != nil {
		l.Warn("clear failed to release pages",
			"released", humanize.IBytes(uint64(released)),
			"error", err,
		)
		return
	}
	l.Debug("space cleared",
		"released", humanize.IBytes(uint64(released)),
	)
}

// LogClamp logs a growth-limit clamp.
func (l *Logger) LogClamp(oldCapacity, newCapacity uintptr) {
	l.Info("growth limit clamped",
		"old_capacity", humanize.IBytes(uint64(oldCapacity)),
		"new_capacity", humanize.IBytes(uint64(newCapacity)),
	)
}

// LogAllocFailure logs an exhausted block allocation.
func (l *Logger) LogAllocFailure(requested, largestFree uintptr) {
	l.Warn("block allocation failed",
		"requested", humanize.IBytes(uint64(requested)),
		"largest_contiguous", humanize.IBytes(uint64(largestFree)),
	)
}
