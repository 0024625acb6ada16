package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(Options{Level: "warn", Writer: &buf})
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "table", "department")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "table=department") {
		t.Errorf("Expected warn message with attrs, got: %s", out)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tablesync.log")
	logger, closer := New(Options{File: path})

	logger.Info("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Log file missing message: %s", data)
	}
}
