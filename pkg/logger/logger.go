package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Init installs a JSON (default) or text slog handler as the process default.
// Called once from main.
func Init(format, level string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "sms-dispatch"))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Infof(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

func Fatalf(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}
