// Package logging configures the process-wide slog logger
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below debug and dumps request headers
const LevelTrace = slog.Level(-8)

// DefaultLevel is used for empty or unknown level names
const DefaultLevel = slog.LevelInfo

// ParseLevel maps error/warn/info/debug/trace (any case) to a slog level.
// Unknown names fall back to DefaultLevel.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return DefaultLevel
	}
}

// LevelName is the inverse of ParseLevel
func LevelName(level slog.Level) string {
	switch {
	case level <= LevelTrace:
		return "trace"
	case level <= slog.LevelDebug:
		return "debug"
	case level <= slog.LevelInfo:
		return "info"
	case level <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// NewLogger builds a text or JSON logger writing to out and every extra writer
func NewLogger(level slog.Level, format string, out io.Writer, extra ...io.Writer) *slog.Logger {
	writers := append([]io.Writer{out}, extra...)
	w := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup installs the logger as slog's default and returns it
func Setup(level slog.Level, format string, extra ...io.Writer) *slog.Logger {
	logger := NewLogger(level, format, os.Stdout, extra...)
	slog.SetDefault(logger)
	return logger
}
