// Package logger builds the *slog.Logger every ragstream component logs
// through: plain text by default, JSON for service logs, or the
// charmbracelet/log pretty handler on a terminal. Secret attributes are
// masked in all three.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// RequestIDKey is the attribute carrying the id of a relayed request.
const RequestIDKey = "request_id"

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
	redact  []string
}

// New creates a logger configured by opts. Without options it writes
// Info-level text records to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer = os.Stdout
	switch len(c.writers) {
	case 0:
	case 1:
		w = c.writers[0]
	default:
		w = io.MultiWriter(c.writers...)
	}

	var h slog.Handler
	switch {
	case c.json:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	case c.pretty:
		h = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	}

	return slog.New(newRedactHandler(h, c.redact))
}

// ForRequest scopes l to one relayed request.
func ForRequest(l *slog.Logger, requestID string) *slog.Logger {
	return l.With(RequestIDKey, requestID)
}

// Nop returns a logger that discards every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
