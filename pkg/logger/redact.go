package logger

import (
	"context"
	"log/slog"
	"strings"
)

// Redacted replaces the value of a secret attribute.
const Redacted = "<redacted>"

// SecretKeys are always masked. The upstream token must never reach a log
// file, whichever component happens to log it.
var SecretKeys = []string{"api_token", "authorization", "token"}

type redactHandler struct {
	next slog.Handler
	keys map[string]struct{}
}

func newRedactHandler(next slog.Handler, extra []string) *redactHandler {
	keys := make(map[string]struct{}, len(SecretKeys)+len(extra))
	for _, k := range append(append([]string{}, SecretKeys...), extra...) {
		keys[strings.ToLower(k)] = struct{}{}
	}
	return &redactHandler{next: next, keys: keys}
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.mask(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &redactHandler{next: h.next.WithAttrs(masked), keys: h.keys}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), keys: h.keys}
}

func (h *redactHandler) mask(a slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}

	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: v}
	}

	group := v.Group()
	masked := make([]any, len(group))
	for i, ga := range group {
		masked[i] = h.mask(ga)
	}
	return slog.Group(a.Key, masked...)
}
