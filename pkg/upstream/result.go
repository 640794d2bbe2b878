package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 4096

// Kind tags which shape the upstream result arrived in.
type Kind int

const (
	// KindResponse is an HTTP response whose body carries the event stream.
	KindResponse Kind = iota

	// KindStream is a byte stream handed over directly.
	KindStream

	// KindValue is a fully materialized, non-streaming value. Its Body holds
	// the serialized text as a single complete chunk.
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindStream:
		return "stream"
	case KindValue:
		return "value"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the normalized upstream result.
type Result struct {
	Kind Kind

	// Body yields the upstream bytes. The caller must close it.
	Body io.ReadCloser
}

// Streaming reports whether Body is an incremental event stream.
func (r *Result) Streaming() bool {
	return r.Kind != KindValue
}

// Normalize resolves the shape of a Searcher result exactly once.
func Normalize(v any) (*Result, error) {
	switch t := v.(type) {
	case nil:
		return nil, &Error{Err: errors.New("empty result")}

	case *http.Response:
		if t == nil {
			return nil, &Error{Err: errors.New("empty result")}
		}
		if t.Body == nil {
			return nil, &Error{StatusCode: t.StatusCode, Err: errors.New("response has no body")}
		}
		if t.StatusCode < 200 || t.StatusCode > 299 {
			return nil, responseError(t)
		}
		return &Result{Kind: KindResponse, Body: t.Body}, nil

	case io.ReadCloser:
		return &Result{Kind: KindStream, Body: t}, nil

	case io.Reader:
		return &Result{Kind: KindStream, Body: io.NopCloser(t)}, nil

	case string:
		return valueResult([]byte(t)), nil

	case []byte:
		return valueResult(t), nil

	default:
		data, err := json.Marshal(t)
		if err != nil {
			return nil, &Error{Err: fmt.Errorf("serializing %T result: %w", v, err)}
		}
		return valueResult(data), nil
	}
}

func valueResult(data []byte) *Result {
	return &Result{Kind: KindValue, Body: io.NopCloser(bytes.NewReader(data))}
}

// responseError drains and closes a failed response into an *Error.
func responseError(resp *http.Response) *Error {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
