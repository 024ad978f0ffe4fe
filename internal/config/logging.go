package config

import (
	"io"
	"log/slog"

	"git.home.luguber.info/inful/harvestcycle/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// SlogLevel maps the level onto slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (c LoggingConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := c.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
