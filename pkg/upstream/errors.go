package upstream

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when no Searcher binding has been configured.
var ErrUnavailable = errors.New("AI binding not available")

// Error is a failure of the upstream call itself: a transport error, a
// non-2xx response, or a result of an unexpected shape.
type Error struct {
	// StatusCode is the upstream HTTP status, or zero when no response was received.
	StatusCode int

	// Body is the (possibly truncated) upstream error body.
	Body string

	Err error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	default:
		return "upstream request failed"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// retryable reports whether the call may be attempted again.
func (e *Error) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}
