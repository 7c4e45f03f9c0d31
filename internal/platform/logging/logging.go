package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const service = "policyadmin"

// New returns the process logger. Production logs are JSON at info level;
// everything else is text at debug. level overrides either default.
func New(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	var handler slog.Handler

	switch env {
	case "prod", "production":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     parseLevel(level, slog.LevelInfo),
			AddSource: true,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: parseLevel(level, slog.LevelDebug),
		})
	}

	return slog.New(handler).With("service", service, "env", env)
}

func parseLevel(s string, def slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return def
	}
	return l
}
