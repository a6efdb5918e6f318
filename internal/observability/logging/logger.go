package logging

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

const appName = "npro"

// NewJSONLogger writes JSON records to stdout tagged with app and service.
func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New builds the JSON logger on w. Credentials in "url" and "dsn" attributes
// are masked, e.g. a NATS URL with user:password.
func New(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redactCredentials,
	})
	return slog.New(handler).With("app", appName, "service", service)
}

func redactCredentials(_ []string, a slog.Attr) slog.Attr {
	if a.Key != "url" && a.Key != "dsn" {
		return a
	}
	u, err := url.Parse(a.Value.String())
	if err != nil || u.User == nil {
		return a
	}
	return slog.String(a.Key, u.Redacted())
}

func parseLevel(level string) slog.Level {
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
