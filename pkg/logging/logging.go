// Package logging provides a small abstraction over slog so the engine can
// depend on a minimal Logger interface while callers plug in their own
// structured logger, a default text/JSON handler, or a no-op for tests.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the minimal logging interface used across the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a Logger that attaches the given key/value pairs to
	// every entry, e.g. With("component", "engine").
	With(args ...any) Logger
}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// With returns a Logger carrying the extra attributes.
func (s *SlogAdapter) With(args ...any) Logger {
	return &SlogAdapter{Logger: s.Logger.With(args...)}
}

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// New builds a Logger writing to out with the given level and format
// ("text" or "json", defaulting to text).
func New(level, format string, out io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return &SlogAdapter{Logger: slog.New(handler)}
}

// NewDefault returns a text Logger at info level on stdout.
func NewDefault() Logger {
	return New("info", "text", os.Stdout)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NoOp discards all log messages. Useful for tests.
type NoOp struct{}

// Debug discards the message.
func (NoOp) Debug(string, ...any) {}

// Info discards the message.
func (NoOp) Info(string, ...any) {}

// Warn discards the message.
func (NoOp) Warn(string, ...any) {}

// Error discards the message.
func (NoOp) Error(string, ...any) {}

// With returns the same no-op logger.
func (n NoOp) With(...any) Logger { return n }
