// Package stream is the relay pipeline: it reads the normalized upstream
// result, parses SSE frames, extracts response fragments, and writes them to
// the caller in arrival order with no batching.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/papercomputeco/ragstream/pkg/extract"
	"github.com/papercomputeco/ragstream/pkg/sse"
	"github.com/papercomputeco/ragstream/pkg/upstream"
)

// Options configures a Copy.
type Options struct {
	Format Format

	// MaxPending bounds a payload held while waiting for completion.
	MaxPending int

	// MaxLineSize bounds a single SSE line.
	MaxLineSize int

	Logger *slog.Logger
}

// Stats summarizes one relayed stream.
type Stats struct {
	// Events is the number of SSE events read from upstream.
	Events int

	// Fragments is the number of non-empty text fragments written.
	Fragments int

	// Bytes is the number of bytes written to the caller.
	Bytes int64

	// Discarded is the size of an incomplete payload dropped at the end of
	// the stream.
	Discarded int

	// Done records whether the upstream sent the terminal sentinel.
	Done bool
}

type fragmentEvent struct {
	Response string `json:"response"`
}

// Copy relays res to dst until the upstream ends, ctx is done, or a write
// fails. It does not close res.Body.
func Copy(ctx context.Context, dst io.Writer, res *upstream.Result, opts Options) (Stats, error) {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	cw := &countingWriter{w: dst}

	if !res.Streaming() {
		_, err := io.Copy(cw, res.Body)
		if err != nil {
			return Stats{Bytes: cw.n}, fmt.Errorf("writing materialized result: %w", err)
		}
		return Stats{Bytes: cw.n}, nil
	}

	if opts.Format == FormatRaw {
		return copyRaw(ctx, cw, res.Body, opts)
	}

	return copyFragments(ctx, cw, res.Body, opts)
}

func copyRaw(ctx context.Context, cw *countingWriter, body io.Reader, opts Options) (Stats, error) {
	var stats Stats
	r := sse.NewTeeReader(body, cw, sse.WithMaxLineSize(opts.MaxLineSize))

	for {
		if err := ctx.Err(); err != nil {
			stats.Bytes = cw.n
			return stats, err
		}

		ev, err := r.Next()
		if err != nil {
			stats.Bytes = cw.n
			return stats, fmt.Errorf("relaying upstream stream: %w", err)
		}
		if ev == nil {
			stats.Bytes = cw.n
			return stats, nil
		}
		stats.Events++
	}
}

func copyFragments(ctx context.Context, cw *countingWriter, body io.Reader, opts Options) (Stats, error) {
	var stats Stats
	r := sse.NewReader(body, sse.WithMaxLineSize(opts.MaxLineSize))
	x := extract.New(opts.MaxPending, opts.Logger)

	for {
		if err := ctx.Err(); err != nil {
			stats.Bytes = cw.n
			return stats, err
		}

		ev, err := r.Next()
		if err != nil {
			stats.Bytes = cw.n
			return stats, fmt.Errorf("reading upstream stream: %w", err)
		}
		if ev == nil {
			break
		}
		stats.Events++
		if ev.Done() {
			stats.Done = true
		}

		// Each data line is a payload of its own. The sentinel never joins
		// the pending buffer, and parsing continues past it.
		for _, line := range ev.Lines {
			if sse.IsSentinel(line) {
				continue
			}

			text, ok := x.Extract(line)
			if !ok || text == "" {
				continue
			}

			if err := writeFragment(cw, text, opts.Format); err != nil {
				stats.Bytes = cw.n
				return stats, fmt.Errorf("writing fragment: %w", err)
			}
			stats.Fragments++
		}
	}

	stats.Discarded = x.Flush()

	if opts.Format == FormatEvents {
		if _, err := io.WriteString(cw, "data: "+sse.Sentinel+"\n\n"); err != nil {
			stats.Bytes = cw.n
			return stats, fmt.Errorf("writing sentinel: %w", err)
		}
	}

	stats.Bytes = cw.n
	return stats, nil
}

func writeFragment(w io.Writer, text string, format Format) error {
	if format != FormatEvents {
		_, err := io.WriteString(w, text)
		return err
	}

	data, err := json.Marshal(fragmentEvent{Response: text})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
