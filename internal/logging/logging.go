package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Rotation struct {
	MaxSize    int
	MaxAge     int
	MaxBackups int
	LocalTime  bool
	Compress   bool
}

type Options struct {
	Level    string
	Output   string // "stderr", "stdout", "none" or a file path
	Rotation *Rotation
}

// New returns a JSON slog logger. A file whose directory cannot be created
// or that cannot be opened falls back to stderr.
func New(opts Options) *slog.Logger {
	return slog.New(slog.NewJSONHandler(writer(opts), &slog.HandlerOptions{Level: ParseLevel(opts.Level)}))
}

func writer(opts Options) io.Writer {
	switch opts.Output {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	case "none", "null":
		return io.Discard
	}

	if r := opts.Rotation; r != nil {
		return &lumberjack.Logger{
			Filename:   opts.Output,
			MaxSize:    r.MaxSize,
			MaxAge:     r.MaxAge,
			MaxBackups: r.MaxBackups,
			LocalTime:  r.LocalTime,
			Compress:   r.Compress,
		}
	}
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		return os.Stderr
	}
	f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return os.Stderr
	}
	return f
}

func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
