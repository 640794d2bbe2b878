// Package mcp provides an MCP (Model Context Protocol) server exposing the
// relay pipeline as an "ask" tool.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/ragstream/pkg/upstream"
	"github.com/papercomputeco/ragstream/pkg/utils"
)

type Config struct {
	// Searcher is the upstream RAG binding. A nil Searcher still registers
	// the tool; calls report the binding as unavailable.
	Searcher upstream.Searcher

	// Search holds the fixed parameters sent with every query.
	Search upstream.Options

	// Timeout bounds one tool call.
	Timeout time.Duration

	// MaxPending bounds a partial upstream payload held for completion.
	MaxPending int

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the ask tool.
func NewServer(c Config) (*Server, error) {
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ragstream",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        askToolName,
		Description: askDescription,
	}, s.handleAsk)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
