package log

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	logger   = newLogger("text")
)

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelVar}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h).With(slog.String("lib", "threadlocal"))
}

func init() {
	levelVar.Set(slog.LevelWarn)
}

// Logger returns the logger currently used by the library.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the library logger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger = l.With(slog.String("lib", "threadlocal"))
}

// SetFormat switches the built-in handler between "text" and "json" output.
func SetFormat(format string) error {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return errors.New("invalid log format")
	}
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(format)
	return nil
}

func SetLogLevel(level string) error {
	switch strings.ToUpper(level) {
	case "DEBUG":
		levelVar.Set(slog.LevelDebug)
	case "INFO":
		levelVar.Set(slog.LevelInfo)
	case "WARN", "WARNING":
		levelVar.Set(slog.LevelWarn)
	case "ERROR", "ERR":
		levelVar.Set(slog.LevelError)
	default:
		return errors.New("invalid log level")
	}
	return nil
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}
