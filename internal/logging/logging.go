// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much is logged
type Options struct {
	Level string // debug, info, warn, error (default: info)

	// File enables rotating file output. The terminal UI owns stdout, so it
	// always logs to a file.
	File       string
	MaxSizeMB  int // default: 10
	MaxBackups int // default: 3

	// Writer is used when File is empty (default: os.Stderr)
	Writer io.Writer
}

// ParseLevel maps a level name to a slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New builds a text logger from opts. The returned closer releases the log
// file, if any.
func New(opts Options) (*slog.Logger, io.Closer) {
	var w io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			Compress:   false,
		}
		w = lj
		closer = lj
	} else if opts.Writer != nil {
		w = opts.Writer
	} else {
		w = os.Stderr
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	return slog.New(handler), closer
}

// Discard returns a logger that drops everything, for tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
