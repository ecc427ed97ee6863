package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the process wide logger. It falls back to slog's default logger
// until Init is called, so packages may log from tests.
var Log = slog.Default()

func Init(level string) {
	InitWithWriter(os.Stdout, level)
}

// InitWithWriter installs a JSON logger writing to w.
func InitWithWriter(w io.Writer, level string) {
	// JSON handler for production-ready logging
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	Log = slog.New(handler)
}

// ParseLevel maps debug, info, warn and error to slog levels.
// Anything else is info.
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
