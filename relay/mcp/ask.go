package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/ragstream/pkg/stream"
	"github.com/papercomputeco/ragstream/pkg/upstream"
)

var (
	askToolName    = "ask"
	askDescription = "Ask the configured RAG collection a question. Returns the generated answer grounded in the collection's documents."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Query            string `json:"query" jsonschema:"the question to answer"`
	PreviousResponse string `json:"previous_response,omitempty" jsonschema:"an earlier answer; when set the question is treated as a follow-up"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	Fragments int    `json:"fragments"`
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// handleAsk runs the relay pipeline and collects the streamed answer.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger

	if strings.TrimSpace(input.Query) == "" {
		return toolError("Query is required"), AskOutput{}, nil
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	logger.Debug("MCP ask request", "query", input.Query)

	res, err := upstream.Ask(ctx, s.config.Searcher, upstream.Query{
		Text:             input.Query,
		IsFollowUp:       input.PreviousResponse != "",
		PreviousResponse: input.PreviousResponse,
	}, s.config.Search)
	if err != nil {
		logger.Error("MCP ask failed", "error", err)
		return toolError("Error: %v", err), AskOutput{}, nil
	}
	defer res.Body.Close()

	var answer strings.Builder
	stats, err := stream.Copy(ctx, &answer, res, stream.Options{
		Format:     stream.FormatText,
		MaxPending: s.config.MaxPending,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("MCP ask stream aborted", "error", err)
		return toolError("Error: %v", err), AskOutput{}, nil
	}

	output := AskOutput{
		Query:     input.Query,
		Answer:    answer.String(),
		Fragments: stats.Fragments,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: output.Answer},
		},
	}, output, nil
}
