package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the colorized charmbracelet/log handler used on a TTY.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects slog's JSON handler. It wins over WithPretty.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter replaces the output with w.
func WithWriter(w io.Writer) Option {
	return WithWriters(w)
}

// WithWriters writes every record to all of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) { c.writers = ws }
}

// WithSource reports the calling file and line.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// WithRedact adds attribute keys whose values are masked on output, on top
// of SecretKeys.
func WithRedact(keys ...string) Option {
	return func(c *config) { c.redact = append(c.redact, keys...) }
}
