package stream_test

import (
	"bytes"
	"context"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragstream/pkg/logger"
	"github.com/papercomputeco/ragstream/pkg/stream"
	"github.com/papercomputeco/ragstream/pkg/upstream"
)

const helloWorld = "data: {\"response\":\"Hello\"}\n\ndata: {\"response\":\" world\"}\n\ndata: [DONE]\n\n"

func streamResult(parts ...string) *upstream.Result {
	readers := make([]io.Reader, 0, len(parts))
	for _, p := range parts {
		readers = append(readers, strings.NewReader(p))
	}
	res, err := upstream.Normalize(io.MultiReader(readers...))
	Expect(err).NotTo(HaveOccurred())
	return res
}

func relay(res *upstream.Result, format stream.Format) (string, stream.Stats) {
	var out bytes.Buffer
	stats, err := stream.Copy(context.Background(), &out, res, stream.Options{
		Format: format,
		Logger: logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())
	return out.String(), stats
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

var _ = Describe("ParseFormat", func() {
	It("defaults to text", func() {
		f, err := stream.ParseFormat("")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(stream.FormatText))
		Expect(f.ContentType()).To(Equal("text/plain; charset=utf-8"))
	})

	It("parses event formats case-insensitively", func() {
		f, err := stream.ParseFormat(" Events ")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(stream.FormatEvents))
		Expect(f.ContentType()).To(Equal("text/event-stream"))
	})

	It("rejects unknown formats", func() {
		_, err := stream.ParseFormat("xml")
		Expect(err).To(MatchError(ContainSubstring("unknown stream format")))
	})
})

var _ = Describe("Copy", func() {
	Context("text format", func() {
		It("relays exactly the response fields without the sentinel", func() {
			out, stats := relay(streamResult(helloWorld), stream.FormatText)
			Expect(out).To(Equal("Hello world"))
			Expect(stats.Events).To(Equal(3))
			Expect(stats.Fragments).To(Equal(2))
			Expect(stats.Bytes).To(Equal(int64(len("Hello world"))))
		})

		It("produces identical output regardless of chunk boundaries", func() {
			want, _ := relay(streamResult(helloWorld), stream.FormatText)

			for i := 1; i < len(helloWorld); i++ {
				for j := i + 1; j < len(helloWorld); j += 5 {
					got, _ := relay(streamResult(helloWorld[:i], helloWorld[i:j], helloWorld[j:]), stream.FormatText)
					Expect(got).To(Equal(want), "split at %d and %d", i, j)
				}
			}
		})

		It("keeps relaying after a malformed event", func() {
			out, _ := relay(streamResult(
				"data: {\"response\":\"A\"}\n\n",
				"data: {broken\n\n",
				"data: {\"response\":\"B\"}\n\n",
				"data: [DONE]\n\n",
			), stream.FormatText)
			Expect(out).To(Equal("AB"))
		})

		It("skips metadata-only events", func() {
			out, _ := relay(streamResult(
				"data: {\"sources\":[{\"filename\":\"faq.md\"}]}\n\n",
				"data: {\"response\":\"answer\"}\n\n",
			), stream.FormatText)
			Expect(out).To(Equal("answer"))
		})

		It("continues past a sentinel in the middle of the stream", func() {
			out, _ := relay(streamResult("data: {\"response\":\"a\"}\n\ndata: [DONE]\n\ndata: {\"response\":\"b\"}\n\n"), stream.FormatText)
			Expect(out).To(Equal("ab"))
		})

		It("reassembles a payload split across events", func() {
			out, _ := relay(streamResult("data: {\"response\":\n\ndata: \"joined\"}\n\n"), stream.FormatText)
			Expect(out).To(Equal("joined"))
		})

		It("relays a payload that shares its event with the sentinel", func() {
			out, stats := relay(streamResult("data: {\"response\":\"a\"}\ndata: [DONE]\n\n"), stream.FormatText)
			Expect(out).To(Equal("a"))
			Expect(stats.Done).To(BeTrue())
		})

		It("relays back-to-back data lines with no blank separator", func() {
			out, stats := relay(streamResult("data: {\"response\":\"a\"}\ndata: {\"response\":\"b\"}\ndata: [DONE]\n"), stream.FormatText)
			Expect(out).To(Equal("ab"))
			Expect(stats.Fragments).To(Equal(2))
		})

		It("reassembles a payload split across data lines of one event", func() {
			out, _ := relay(streamResult("data: {\"response\":\n", "data: \"joined\"}\n\n"), stream.FormatText)
			Expect(out).To(Equal("joined"))
		})

		It("reports a payload cut off at the end of the stream", func() {
			_, stats := relay(streamResult("data: {\"response\":\"a\"}\n\ndata: {\"response\":\"cut"), stream.FormatText)
			Expect(stats.Discarded).To(Equal(len(`{"response":"cut`)))
			Expect(stats.Done).To(BeFalse())
		})

		It("flushes a final event without a trailing blank line", func() {
			out, _ := relay(streamResult("data: {\"response\":\"end\"}"), stream.FormatText)
			Expect(out).To(Equal("end"))
		})
	})

	Context("events format", func() {
		It("re-frames each fragment and terminates with the sentinel", func() {
			out, stats := relay(streamResult(helloWorld), stream.FormatEvents)
			Expect(out).To(Equal("data: {\"response\":\"Hello\"}\n\ndata: {\"response\":\" world\"}\n\ndata: [DONE]\n\n"))
			Expect(stats.Fragments).To(Equal(2))
		})
	})

	Context("raw format", func() {
		It("forwards upstream bytes verbatim", func() {
			out, stats := relay(streamResult(helloWorld[:10], helloWorld[10:]), stream.FormatRaw)
			Expect(out).To(Equal(helloWorld))
			Expect(stats.Events).To(Equal(3))
		})

		It("keeps CRLF line breaks and an unterminated last line", func() {
			input := "data: {\"response\":\"a\"}\r\n\r\ndata: [DONE]"
			out, _ := relay(streamResult(input[:7], input[7:]), stream.FormatRaw)
			Expect(out).To(Equal(input))
		})
	})

	Context("materialized result", func() {
		It("writes the serialized value as-is", func() {
			res, err := upstream.Normalize(map[string]any{"response": "complete"})
			Expect(err).NotTo(HaveOccurred())

			out, stats := relay(res, stream.FormatText)
			Expect(out).To(MatchJSON(`{"response":"complete"}`))
			Expect(stats.Events).To(BeZero())
		})
	})

	Context("failures", func() {
		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := stream.Copy(ctx, io.Discard, streamResult(helloWorld), stream.Options{})
			Expect(err).To(MatchError(context.Canceled))
		})

		It("surfaces write failures", func() {
			_, err := stream.Copy(context.Background(), errWriter{}, streamResult(helloWorld), stream.Options{})
			Expect(err).To(MatchError(io.ErrClosedPipe))
		})

		It("surfaces oversized lines", func() {
			_, err := stream.Copy(context.Background(), io.Discard,
				streamResult("data: "+strings.Repeat("x", 64)+"\n\n"),
				stream.Options{MaxLineSize: 16})
			Expect(err).To(MatchError(ContainSubstring("reading upstream stream")))
		})
	})
})
