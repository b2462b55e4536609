package component

import (
	"log/slog"
	"sync/atomic"
)

// Logger provides the structured logging channel for blocks. It wraps a
// slog.Logger with the block name attached and keeps an error tally so
// Health can report failures that were logged rather than returned
// (per-cycle read and open failures have no error-return path).
type Logger struct {
	blockName string
	logger    *slog.Logger

	errorCount atomic.Int64
	lastError  atomic.Value // string
}

// NewLogger creates a block logger. A nil slog.Logger falls back to
// slog.Default.
func NewLogger(blockName string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		blockName: blockName,
		logger:    logger.With("block", blockName),
	}
}

// Debug logs a debug-level message
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info-level message
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning-level message
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error-level message and records it for health reporting
func (l *Logger) Error(msg string, err error, args ...any) {
	l.errorCount.Add(1)
	if err != nil {
		l.lastError.Store(err.Error())
		args = append(args, "error", err)
	} else {
		l.lastError.Store(msg)
	}
	l.logger.Error(msg, args...)
}

// ErrorCount returns the number of errors logged through this channel
func (l *Logger) ErrorCount() int {
	return int(l.errorCount.Load())
}

// LastError returns the most recently logged error message, or ""
func (l *Logger) LastError() string {
	s, _ := l.lastError.Load().(string)
	return s
}
