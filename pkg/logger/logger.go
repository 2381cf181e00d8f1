// Package logger is a small leveled, printf-style logger shared by all packages.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu    sync.RWMutex
	level = new(slog.LevelVar)
	base  = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w)
}

// SetLevel sets the minimum level by name: debug, info, warn or error.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

func logf(lvl slog.Level, format string, args ...any) {
	mu.RLock()
	l := base
	mu.RUnlock()
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	l.Log(context.Background(), lvl, fmt.Sprintf(format, args...))
}

func Debug(format string, args ...any) { logf(slog.LevelDebug, format, args...) }

func Info(format string, args ...any) { logf(slog.LevelInfo, format, args...) }

func Warn(format string, args ...any) { logf(slog.LevelWarn, format, args...) }

func Error(format string, args ...any) { logf(slog.LevelError, format, args...) }
