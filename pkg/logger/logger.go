// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type loggerKey struct{}

var globalLogger zerolog.Logger

func init() {
	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		parsed, err := zerolog.ParseLevel(raw)
		if err != nil || parsed == zerolog.NoLevel {
			log.Warn().Err(err).Msgf("invalid LOG_LEVEL, defaulting to INFO")
		} else {
			level = parsed
		}
	}

	globalLogger = New(os.Stderr, FormatConsole).Level(level)
	log.Logger = globalLogger
}

// New builds a logger writing to w. The console format is meant for a person
// watching the run; json is for log shippers.
func New(w io.Writer, format string) zerolog.Logger {
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Configure replaces the global logger. Unknown levels keep the current one.
func Configure(w io.Writer, format, level string) {
	l := New(w, format).Level(globalLogger.GetLevel())
	if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
		l = l.Level(parsed)
	}
	globalLogger = l
	log.Logger = globalLogger
}

// Global returns the process logger.
func Global() *zerolog.Logger {
	return &globalLogger
}

func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &globalLogger
	}
	if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok {
		return l
	}
	return &globalLogger
}

func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// SetLevel updates the global log level
func SetLevel(level zerolog.Level) {
	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

// Fatal logs a fatal message and exits
func Fatal() *zerolog.Event {
	return globalLogger.Fatal()
}

// Error logs an error message
func Error() *zerolog.Event {
	return globalLogger.Error()
}

// Warn logs a warning message
func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

// Info logs an info message
func Info() *zerolog.Event {
	return globalLogger.Info()
}

// Debug logs a debug message
func Debug() *zerolog.Event {
	return globalLogger.Debug()
}
