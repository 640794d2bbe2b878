package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024

	// DefaultMaxLineSize bounds a single line held while waiting for its
	// line break.
	DefaultMaxLineSize = 1024 * 1024
)

// Option configures a Reader.
type Option func(*Reader)

// WithMaxLineSize overrides the largest line the Reader will buffer.
// A longer line makes Next return bufio.ErrTooLong.
func WithMaxLineSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

// WithTee forwards the source bytes to dest exactly as read, line breaks
// included, before they are parsed.
func WithTee(dest io.Writer) Option {
	return func(r *Reader) {
		r.dest = dest
	}
}

// Reader reads SSE events from a source io.Reader. Bytes may arrive in
// arbitrary chunks: a line is only parsed once its line break has been read,
// so a partial trailing line is carried over into the next read instead of
// being dropped.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌────────────────────────────────┐
// │  Reader.Next()   │──▶│ optional tee io.Writer (raw)   │
// └──────────────────┘   └────────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer
	maxLine int

	// current accumulates fields for the event being built in the current scan.
	current *Event
	hasData bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		maxLine: DefaultMaxLineSize,
		current: &Event{},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.dest != nil {
		src = io.TeeReader(src, r.dest)
	}

	r.scanner = bufio.NewScanner(src)
	r.scanner.Buffer(make([]byte, min(initialBufferSize, r.maxLine)), r.maxLine)

	return r
}

// NewTeeReader returns a Reader that parses SSE events from the src io.Reader
// and writes all raw bytes through to dest.
// The dest writer typically backs an io.Pipe connected to the downstream HTTP
// response.
func NewTeeReader(src io.Reader, dest io.Writer, opts ...Option) *Reader {
	return NewReader(src, append(opts, WithTee(dest))...)
}

// Next returns the next parsed SSE event. It blocks until a complete event is
// available (terminated by a blank line in the stream).
// Next returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		// A blank line signals the end of the current event.
		if raw == "" {
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}

			// Leading blank lines or keep-alive newlines.
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Source exhausted. If there is an in-progress event (stream ended
	// without a trailing blank line), yield it.
	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}

	return nil, nil
}

// parseLine processes a single non-empty, non-comment SSE line and
// accumulates the field into the current event.
//
// Per the SSE spec, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present.
func (r *Reader) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		// Line with no colon: the entire line is the field name with
		// an empty value.
		field = line
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.current.Lines = append(r.current.Lines, value)
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored per the SSE spec.
	}
}

func (r *Reader) reset() {
	r.current = &Event{}
	r.hasData = false
}
