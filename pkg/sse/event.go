// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// reader for consuming the event stream returned by the upstream RAG service.
// It parses events incrementally as bytes arrive and can optionally forward
// the raw bytes verbatim to a downstream writer in a tee pipe fashion.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Sentinel is the data payload the upstream sends to mark the end of the stream.
const Sentinel = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// Lines holds each "data:" value on its own, in arrival order. Upstreams
	// that put several JSON payloads, or a payload and the sentinel, into one
	// event are decoded line by line from here.
	Lines []string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// Done reports whether any data line of the event is the terminal sentinel.
func (e *Event) Done() bool {
	if e == nil {
		return false
	}
	for _, line := range e.Lines {
		if IsSentinel(line) {
			return true
		}
	}
	return false
}

// IsSentinel reports whether a single data line is the terminal sentinel.
func IsSentinel(line string) bool {
	return line == Sentinel
}
