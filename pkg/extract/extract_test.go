package extract_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragstream/pkg/extract"
	"github.com/papercomputeco/ragstream/pkg/logger"
)

// feed runs every payload through x and returns the emitted fragments.
func feed(x *extract.Extractor, payloads ...string) []string {
	var out []string
	for _, p := range payloads {
		if text, ok := x.Extract(p); ok {
			out = append(out, text)
		}
	}
	return out
}

var _ = Describe("Extractor", func() {
	var x *extract.Extractor

	BeforeEach(func() {
		x = extract.New(0, logger.Nop())
	})

	It("emits response fields in arrival order", func() {
		Expect(feed(x,
			`{"response":"Hello"}`,
			`{"response":" world"}`,
		)).To(Equal([]string{"Hello", " world"}))
	})

	It("never emits the sentinel", func() {
		Expect(feed(x, `{"response":"a"}`, "[DONE]")).To(Equal([]string{"a"}))
		Expect(x.Flush()).To(BeZero())
	})

	It("ignores payloads without a string response field", func() {
		Expect(feed(x,
			`{"citations":[{"file":"a.md"}]}`,
			`{"response":42}`,
			`{"response":"kept","usage":{"tokens":3}}`,
		)).To(Equal([]string{"kept"}))
	})

	It("emits empty response strings", func() {
		text, ok := x.Extract(`{"response":""}`)
		Expect(ok).To(BeTrue())
		Expect(text).To(BeEmpty())
	})

	It("skips malformed payloads without blocking later ones", func() {
		Expect(feed(x,
			`{"response":"one"}`,
			`{not json}`,
			`{"response":"two"}`,
		)).To(Equal([]string{"one", "two"}))
		Expect(x.Flush()).To(BeZero())
	})

	It("completes a payload split across several events", func() {
		Expect(feed(x,
			`{"respo`,
			`nse":"Hel`,
			`lo"}`,
		)).To(Equal([]string{"Hello"}))
		Expect(x.Flush()).To(BeZero())
	})

	It("drops a stale fragment when a fresh payload arrives", func() {
		Expect(feed(x,
			`{"response":"trunc`,
			`{"response":"fresh"}`,
		)).To(Equal([]string{"fresh"}))
		Expect(x.Flush()).To(BeZero())
	})

	It("bounds the pending buffer", func() {
		var buf bytes.Buffer
		x = extract.New(16, logger.New(logger.WithWriter(&buf)))

		Expect(feed(x, `{"response":"this never closes`)).To(BeEmpty())
		Expect(x.Flush()).To(BeZero())
		Expect(buf.String()).To(ContainSubstring("exceeded limit"))
	})

	It("rejects trailing data after an object", func() {
		Expect(feed(x, `{"response":"a"} trailing`)).To(BeEmpty())
		Expect(x.Flush()).To(BeZero())
	})

	DescribeTable("rejects stray closing brackets after an object",
		func(payload string) {
			Expect(feed(x, payload, `{"response":"next"}`)).To(Equal([]string{"next"}))
			Expect(x.Flush()).To(BeZero())
		},
		Entry("brace", `{"response":"x"}}`),
		Entry("bracket", `{"response":"x"}]`),
	)

	It("completes a payload split across data lines of one event", func() {
		Expect(feed(x, `{"response":`, `"joined"}`)).To(Equal([]string{"joined"}))
	})

	Describe("Flush", func() {
		It("discards an incomplete payload", func() {
			var buf bytes.Buffer
			x = extract.New(0, logger.New(logger.WithWriter(&buf)))

			feed(x, `{"response":"half`)
			Expect(x.Flush()).To(Equal(len(`{"response":"half`)))
			Expect(x.Flush()).To(BeZero())
			Expect(buf.String()).To(ContainSubstring("discarding incomplete payload"))
		})
	})
})
