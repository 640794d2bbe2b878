package stream

import (
	"fmt"
	"strings"
)

// Format selects how relayed output is framed for the caller.
type Format string

const (
	// FormatText writes the extracted fragments as plain text.
	FormatText Format = "text"

	// FormatEvents re-frames each fragment as its own SSE event and ends the
	// stream with the sentinel.
	FormatEvents Format = "events"

	// FormatRaw forwards the upstream event stream verbatim.
	FormatRaw Format = "raw"
)

// ParseFormat parses a format name, case-insensitively. Empty means FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatEvents, FormatRaw:
		return f, nil
	default:
		return "", fmt.Errorf("unknown stream format: %q (available: text, events, raw)", s)
	}
}

// ContentType is the response Content-Type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatEvents, FormatRaw:
		return "text/event-stream"
	default:
		return "text/plain; charset=utf-8"
	}
}
