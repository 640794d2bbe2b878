// Package extract pulls the displayable text out of upstream SSE payloads.
//
// Each payload is expected to be a JSON object of the shape
// {"response": "...", ...}. Only the string "response" field is kept; citation
// and metadata payloads yield nothing. Payloads that are not valid JSON never
// abort the stream: truncated ones are held and completed by later payloads,
// malformed ones are logged and dropped.
package extract

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/papercomputeco/ragstream/pkg/sse"
	"github.com/papercomputeco/ragstream/pkg/utils"
)

// DefaultMaxPending bounds the bytes held while waiting for a truncated
// payload to complete.
const DefaultMaxPending = 64 * 1024

// Extractor is a stateful payload decoder scoped to a single stream.
// It is not safe for concurrent use.
type Extractor struct {
	pending    string
	maxPending int
	logger     *slog.Logger
}

// New creates an Extractor. A maxPending of zero or less uses DefaultMaxPending.
func New(maxPending int, logger *slog.Logger) *Extractor {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Extractor{
		maxPending: maxPending,
		logger:     logger,
	}
}

// Extract decodes payload and returns its response text. ok is false when the
// payload produced nothing to relay: the sentinel, a payload without a string
// response field, a payload still waiting on more bytes, or a malformed one.
func (x *Extractor) Extract(payload string) (string, bool) {
	if sse.IsSentinel(payload) {
		return "", false
	}

	if x.pending != "" {
		candidate := x.pending + payload
		text, ok, err := decode(candidate)
		switch {
		case err == nil:
			x.pending = ""
			return text, ok
		case errors.Is(err, io.ErrUnexpectedEOF):
			x.hold(candidate)
			return "", false
		default:
			x.logger.Warn("dropping malformed payload",
				"error", err,
				"bytes", len(candidate),
			)
			x.pending = ""
		}
	}

	text, ok, err := decode(payload)
	switch {
	case err == nil:
		return text, ok
	case errors.Is(err, io.ErrUnexpectedEOF):
		x.hold(payload)
	default:
		x.logger.Warn("skipping malformed payload",
			"error", err,
			"payload", utils.Truncate(payload, 128),
		)
	}

	return "", false
}

// Flush discards a payload that never completed and returns its size. Call
// it once the upstream stream has ended.
func (x *Extractor) Flush() int {
	n := len(x.pending)
	if n == 0 {
		return 0
	}

	x.logger.Warn("discarding incomplete payload at end of stream",
		"bytes", n,
	)
	x.pending = ""
	return n
}

func (x *Extractor) hold(s string) {
	if len(s) > x.maxPending {
		x.logger.Warn("incomplete payload exceeded limit, dropping",
			"bytes", len(s),
			"limit", x.maxPending,
		)
		x.pending = ""
		return
	}
	x.pending = s
}

// decode returns io.ErrUnexpectedEOF for a payload that is valid so far but
// truncated, and any other error for one that can never become valid.
func decode(payload string) (string, bool, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return "", false, nil
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))

	var chunk map[string]any
	if err := dec.Decode(&chunk); err != nil {
		if errors.Is(err, io.EOF) {
			return "", false, io.ErrUnexpectedEOF
		}
		return "", false, err
	}

	// More() misses a stray closing bracket, the offset does not.
	if dec.InputOffset() != int64(len(trimmed)) {
		return "", false, errTrailingData
	}

	text, ok := chunk["response"].(string)
	return text, ok, nil
}

var errTrailingData = errors.New("trailing data after JSON payload")
