// Package logging builds the zerolog logger and the structured events shared
// by import, lookup and scoring code.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"b3-tracker/internal/config"
	apperrors "b3-tracker/internal/errors"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "b3-tracker", "logs", "b3tracker.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// FromConfig overlays the [logging] section of config.toml on the defaults.
func FromConfig(c config.LoggingConfig) LogConfig {
	lc := DefaultLogConfig()
	if c.Level != "" {
		lc.Level = c.Level
	}
	lc.Console = c.Console
	lc.File = c.File
	if c.FilePath != "" {
		lc.FilePath = c.FilePath
	}
	return lc
}

// NewLoggerWithConfig builds a logger writing to stderr, a rotating file or
// both. An unknown level falls back to info.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    color.NoColor,
			TimeFormat: "15:04:05",
		})
	}

	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stderr
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return zerolog.New(writer).With().Timestamp().Logger()
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

type contextKey struct{}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithTicker adds a ticker to the logger context.
func WithTicker(logger zerolog.Logger, ticker string) zerolog.Logger {
	return logger.With().Str("ticker", ticker).Logger()
}

// WithBatch adds an import batch id to the logger context.
func WithBatch(logger zerolog.Logger, batchID string) zerolog.Logger {
	return logger.With().Str("batch_id", batchID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogWarnings logs each defaulting event at warn level.
func LogWarnings(logger zerolog.Logger, warnings []apperrors.Warning) {
	for _, w := range warnings {
		ev := logger.Warn().
			Str("event", "default_applied").
			Str("kind", string(w.Kind))
		if w.Ticker != "" {
			ev = ev.Str("ticker", w.Ticker)
		}
		if w.Field != "" {
			ev = ev.Str("field", w.Field)
		}
		if w.Row > 0 {
			ev = ev.Int("row", w.Row)
		}
		ev.Msg(w.Message)
	}
}

// LogImport logs the outcome of a transaction import.
func LogImport(logger zerolog.Logger, batchID string, rows, trades, warnings int) {
	logger.Info().
		Str("event", "import").
		Str("batch_id", batchID).
		Int("rows", rows).
		Int("trades", trades).
		Int("warnings", warnings).
		Msg("Transactions imported")
}
