package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"UNKNOWN": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	l := New(Options{Level: "DEBUG", Output: path})
	l.Debug("hello", "rules", 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file, got %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"rules":3`) {
		t.Fatalf("unexpected log output %s", data)
	}
}

func TestNewWithRotationUsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")
	l := New(Options{Output: path, Rotation: &Rotation{MaxSize: 1, MaxBackups: 1}})
	l.Info("rotated")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected rotated log file to exist, got %v", err)
	}
}

func TestNewFallsBackOnUnwritablePath(t *testing.T) {
	l := New(Options{Output: "/nonexistent/\x00/log.log"})
	if l == nil {
		t.Fatal("New should return a logger even if the file fails")
	}
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected default level INFO")
	}
}

func TestNewFallsBackWhenLogDirCannotBeCreated(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	opts := Options{Output: filepath.Join(blocker, "logs", "test.log")}

	if w := writer(opts); w != os.Stderr {
		t.Fatalf("expected stderr fallback, got %T", w)
	}
	if l := New(opts); l == nil {
		t.Fatal("New should return a logger even if the directory fails")
	}
	if _, err := os.Stat(filepath.Join(blocker, "logs")); err == nil {
		t.Fatal("no directory should be created under a regular file")
	}
}
