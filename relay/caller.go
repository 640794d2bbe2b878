package relay

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

const (
	// DefaultKeepAlive is the idle interval between keep-alive comments in
	// the events and raw formats.
	DefaultKeepAlive = 15 * time.Second

	callerPollInterval = 250 * time.Millisecond

	keepAliveFrame = ": ping\n\n"
)

// bodyStream is the response body handed to fasthttp. fasthttp closes it
// once it stops writing the response, whether the body ended or the caller
// went away, and closing it releases the upstream stream.
type bodyStream struct {
	pr      *io.PipeReader
	release func()
}

func (b *bodyStream) Read(p []byte) (int, error) {
	return b.pr.Read(p)
}

func (b *bodyStream) Close() error {
	b.release()
	return b.pr.Close()
}

func (b *bodyStream) CloseWithError(err error) error {
	b.release()
	return b.pr.CloseWithError(err)
}

// watchCaller polls conn until done is closed and calls gone if the caller
// hangs up first. It returns at once for connections it cannot inspect.
func watchCaller(conn net.Conn, interval time.Duration, done <-chan struct{}, gone func()) {
	if conn == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		closed, ok := peerClosed(conn)
		if !ok {
			return
		}
		if closed {
			select {
			case <-done:
			default:
				gone()
			}
			return
		}

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// frameWriter serializes writes to the response pipe and remembers whether
// the bytes written so far end on an SSE frame boundary, so keep-alive
// comments never land inside a frame.
type frameWriter struct {
	mu   sync.Mutex
	w    io.Writer
	tail []byte
}

func (f *frameWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.w.Write(p)
	f.tail = append(f.tail, p[:n]...)
	if len(f.tail) > 4 {
		f.tail = f.tail[len(f.tail)-4:]
	}
	return n, err
}

func (f *frameWriter) atBoundary() bool {
	return len(f.tail) == 0 ||
		bytes.HasSuffix(f.tail, []byte("\n\n")) ||
		bytes.HasSuffix(f.tail, []byte("\r\n\r\n"))
}

// ping writes a keep-alive comment if no frame is half written.
func (f *frameWriter) ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.atBoundary() {
		return nil
	}
	_, err := io.WriteString(f.w, keepAliveFrame)
	return err
}

// keepAlive pings fw every interval until done is closed or a write fails.
func keepAlive(fw *frameWriter, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := fw.ping(); err != nil {
				return
			}
		}
	}
}
