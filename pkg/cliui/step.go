package cliui

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Counter is an io.Writer that only counts. Wire it next to the real
// destination so a running step can show how much has arrived.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Write(p []byte) (int, error) {
	c.n.Add(int64(len(p)))
	return len(p), nil
}

// Bytes returns the number of bytes written so far.
func (c *Counter) Bytes() int64 {
	return c.n.Load()
}

// Step shows a spinner labelled msg while fn runs, then replaces it with a
// mark and the elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	return StepCounting(w, msg, nil, fn)
}

// StepCounting is Step with a live byte count taken from counter, which
// may be nil.
func StepCounting(w io.Writer, msg string, counter *Counter, fn func() error) error {
	var mu sync.Mutex
	line := func(prefix string, suffix string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\r  %s %s%s", prefix, msg, suffix)
	}
	received := func() string {
		if counter == nil || counter.Bytes() == 0 {
			return ""
		}
		return " " + StepStyle.Render(FormatBytes(counter.Bytes()))
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			line(spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), received())
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	wg.Wait()

	// Pad with spaces so a shorter final line fully covers the spinner line.
	line(Mark(err), received()+" "+StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed)))+"   \n")

	return err
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatBytes formats a byte count for display (e.g. "512 B" or "1.5 KB").
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
