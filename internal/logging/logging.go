// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured logger used across the
// coordinator, a thin wrapper around log/slog that adds per-component
// tagging.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

// Logger wraps a *slog.Logger with a fixed "component" attribute.
type Logger struct {
	l *slog.Logger
}

// New wraps an existing *slog.Logger.
func New(l *slog.Logger) *Logger {
	return &Logger{l: l}
}

// WithComponent returns a Logger that tags every record with component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l: l.l.With("component", name)}
}

// With returns a Logger with additional fixed key/value attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l: l.l.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.l.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.l.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.l.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.l.Error(msg, args...) }

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Default returns the process-wide default logger, creating a
// text-to-stderr one on first use.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}
	return defaultLogger
}

// SetDefault replaces the process-wide default logger, used by
// cmd/peeringcoordd to apply the configured log level/format at startup.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch s {
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
