// Package relay provides the HTTP front of ragstream: it takes a query,
// runs it against the hosted RAG service, and streams the answer back as it
// is generated.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/papercomputeco/ragstream/pkg/logger"
	"github.com/papercomputeco/ragstream/pkg/stream"
	"github.com/papercomputeco/ragstream/pkg/upstream"
	"github.com/papercomputeco/ragstream/relay/header"
	"github.com/papercomputeco/ragstream/relay/mcp"
)

const (
	msgInvalidBody   = "Invalid request body"
	msgQueryRequired = "Query is required"
)

// Relay answers queries by relaying the RAG service's streamed answer.
type Relay struct {
	config        Config
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler
}

// streamRequest is the body of POST /api/stream.
type streamRequest struct {
	Query            string `json:"query"`
	IsFollowUp       bool   `json:"isFollowUp"`
	PreviousResponse string `json:"previousResponse"`
}

// New creates a new Relay.
func New(config Config, logger *slog.Logger) (*Relay, error) {
	format, err := stream.ParseFormat(string(config.Format))
	if err != nil {
		return nil, err
	}
	config.Format = format

	if config.Timeout < 0 {
		return nil, errors.New("timeout must not be negative")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = DefaultKeepAlive
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	r := &Relay{
		config:        config,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	// Preflight is answered for every path, ahead of any other route.
	app.Options("/*", r.handlePreflight)
	app.Get("/ping", r.handlePing)
	app.Post("/api/stream", r.handleStream)

	if config.MCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Searcher:   config.Searcher,
			Search:     config.Search,
			Timeout:    config.Timeout,
			MaxPending: config.MaxPending,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create MCP server: %w", err)
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"format", r.config.Format,
		"collection", r.config.Search.Collection,
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"format", r.config.Format,
		"collection", r.config.Search.Collection,
	)

	return r.server.Listener(listener)
}

// Close gracefully shuts down the relay, waiting for in-flight streams.
func (r *Relay) Close() error {
	return r.server.Shutdown()
}

func (r *Relay) handlePreflight(c *fiber.Ctx) error {
	r.headerHandler.SetCORSHeaders(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// handlePing returns a simple health check response.
func (r *Relay) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStream validates the query, calls upstream, and streams the answer.
// Failures before the first byte get a plain-text status response; after
// that the body is aborted instead.
func (r *Relay) handleStream(c *fiber.Ctx) error {
	startTime := time.Now()
	logger := logger.ForRequest(r.logger, uuid.NewString())

	r.headerHandler.SetCORSHeaders(c)

	var req streamRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		logger.Warn("invalid request body", "error", err)
		return c.Status(fiber.StatusBadRequest).SendString(msgInvalidBody)
	}

	if strings.TrimSpace(req.Query) == "" {
		logger.Debug("rejecting empty query")
		return c.Status(fiber.StatusBadRequest).SendString(msgQueryRequired)
	}

	query := upstream.Query{
		Text:             req.Query,
		IsFollowUp:       req.IsFollowUp && r.config.FollowUp,
		PreviousResponse: req.PreviousResponse,
	}

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, while the body
	// stream is read from a separate goroutine.
	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)

	res, err := upstream.Ask(ctx, r.config.Searcher, query, r.config.Search)
	if err != nil {
		cancel()
		if errors.Is(err, upstream.ErrUnavailable) {
			logger.Error("no upstream binding configured")
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}
		logger.Error("upstream search failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Error: " + err.Error())
	}

	contentType := r.config.Format.ContentType()
	if !res.Streaming() {
		contentType = stream.FormatText.ContentType()
	}
	r.headerHandler.SetStreamHeaders(c, contentType)

	logger.Debug("relaying upstream answer",
		"kind", res.Kind.String(),
		"format", r.config.Format,
	)

	// release cancels the upstream call and closes its body. It runs when the
	// relay finishes, when fasthttp closes the body stream, or when the
	// caller hangs up while upstream is quiet.
	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			_ = res.Body.Close()
		})
	}

	// io.Pipe gives per-chunk backpressure: pw.Write blocks until fasthttp
	// has read the chunk and flushed it to the socket.
	pr, pw := io.Pipe()
	done := make(chan struct{})

	go r.relay(ctx, release, res, pw, done, logger, startTime)
	go watchCaller(c.Context().Conn(), callerPollInterval, done, func() {
		logger.Info("caller disconnected, releasing upstream")
		release()
	})

	// Unknown size (-1) triggers chunked transfer encoding.
	c.Context().Response.SetBodyStream(&bodyStream{pr: pr, release: release}, -1)

	return nil
}

// relay copies res into pw and tears everything down when done.
func (r *Relay) relay(ctx context.Context, release func(), res *upstream.Result, pw *io.PipeWriter, done chan struct{}, logger *slog.Logger, startTime time.Time) {
	defer release()
	defer close(done)

	fw := &frameWriter{w: pw}
	if res.Streaming() && r.config.Format != stream.FormatText && r.config.KeepAlive > 0 {
		go keepAlive(fw, r.config.KeepAlive, done)
	}

	stats, err := stream.Copy(ctx, fw, res, stream.Options{
		Format:     r.config.Format,
		MaxPending: r.config.MaxPending,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("stream aborted",
			"error", err,
			"fragments", stats.Fragments,
			"bytes", stats.Bytes,
		)
		pw.CloseWithError(err)
		return
	}

	logger.Info("stream complete",
		"events", stats.Events,
		"fragments", stats.Fragments,
		"bytes", stats.Bytes,
		"sentinel", stats.Done,
		"discarded", stats.Discarded,
		"duration", time.Since(startTime),
	)
	pw.Close()
}
