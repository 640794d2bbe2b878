package mcp_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragstream/pkg/logger"
	"github.com/papercomputeco/ragstream/pkg/upstream"
	"github.com/papercomputeco/ragstream/relay/mcp"
)

// connect serves s over HTTP and returns a connected client session.
func connect(ctx context.Context, s *mcp.Server) *sdk.ClientSession {
	ts := httptest.NewServer(s.Handler())
	DeferCleanup(ts.Close)

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, &sdk.StreamableClientTransport{Endpoint: ts.URL}, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = session.Close() })

	return session
}

func textOf(res *sdk.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*sdk.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		searcher upstream.SearchFunc
		gotQuery string
	)

	BeforeEach(func() {
		ctx = context.Background()
		gotQuery = ""
		searcher = func(_ context.Context, req *upstream.SearchRequest) (any, error) {
			gotQuery = req.Query
			return strings.NewReader("data: {\"response\":\"Hello\"}\n\ndata: {\"response\":\" world\"}\n\ndata: [DONE]\n\n"), nil
		}
	})

	Describe("NewServer", func() {
		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Searcher: searcher})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("returns an HTTP handler", func() {
			s, err := mcp.NewServer(mcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})
	})

	Describe("ask tool", func() {
		It("is listed", func() {
			s, err := mcp.NewServer(mcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			tools, err := connect(ctx, s).ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(tools.Tools).To(HaveLen(1))
			Expect(tools.Tools[0].Name).To(Equal("ask"))
		})

		It("collects the streamed answer", func() {
			s, err := mcp.NewServer(mcp.Config{
				Searcher: searcher,
				Search:   upstream.Options{Collection: "aopa-rag"},
				Logger:   logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			res, err := connect(ctx, s).CallTool(ctx, &sdk.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"query": "greet me"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(textOf(res)).To(Equal("Hello world"))
			Expect(gotQuery).To(Equal("greet me"))
		})

		It("treats a previous response as a follow-up", func() {
			s, err := mcp.NewServer(mcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			_, err = connect(ctx, s).CallTool(ctx, &sdk.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"query": "more", "previous_response": "earlier"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(gotQuery).To(HavePrefix("Based on this previous context: earlier, more."))
		})

		It("reports an empty query as a tool error", func() {
			s, err := mcp.NewServer(mcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			res, err := connect(ctx, s).CallTool(ctx, &sdk.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"query": "   "},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(Equal("Query is required"))
			Expect(gotQuery).To(BeEmpty())
		})

		It("reports a missing binding as a tool error", func() {
			s, err := mcp.NewServer(mcp.Config{Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			res, err := connect(ctx, s).CallTool(ctx, &sdk.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"query": "anything"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(Equal("Error: AI binding not available"))
		})

		It("reports upstream failures as a tool error", func() {
			failing := upstream.SearchFunc(func(context.Context, *upstream.SearchRequest) (any, error) {
				return nil, errors.New("quota exceeded")
			})
			s, err := mcp.NewServer(mcp.Config{Searcher: failing, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			res, err := connect(ctx, s).CallTool(ctx, &sdk.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"query": "anything"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(ContainSubstring("quota exceeded"))
		})
	})
})
