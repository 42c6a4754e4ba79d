// Package logging builds the structured logger shared by every component.
//
// Records never go to stdout: when the MCP server runs over stdio, stdout
// carries protocol frames and a stray log line would corrupt the stream.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m4xw311/bachmcp/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a text logger writing to stderr, or to a size-rotated file
// when cfg.File is set.
func New(cfg config.Log) *slog.Logger {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}
	return NewWithWriter(w, cfg.Level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Discard returns a logger that drops every record. Used as the nil-logger
// fallback by components constructed without one.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug|info|warn|error to a slog level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
