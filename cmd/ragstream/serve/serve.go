// Package servecmder provides the serve command for running the relay.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragstream/pkg/cliui"
	"github.com/papercomputeco/ragstream/pkg/config"
	"github.com/papercomputeco/ragstream/pkg/logger"
	"github.com/papercomputeco/ragstream/pkg/stream"
	"github.com/papercomputeco/ragstream/pkg/upstream"
	"github.com/papercomputeco/ragstream/relay"
)

type serveCommander struct {
	// Flag targets. Their resolved values are read back through viper.
	listen         string
	format         string
	timeout        string
	maxPending     int
	baseURL        string
	accountID      string
	collection     string
	model          string
	maxResults     int
	scoreThreshold float64
	retries        int

	logFile  string
	jsonLogs bool
	debug    bool

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the ragstream relay server.

The relay accepts POST /api/stream with a JSON body {"query": "..."},
searches the configured RAG collection with streaming enabled, and relays
the generated answer to the caller as it arrives.

Upstream credentials are read from config.toml or the environment:
  RAGSTREAM_UPSTREAM_ACCOUNT_ID
  RAGSTREAM_UPSTREAM_API_TOKEN

Without them the relay still starts, but every query fails with
"AI binding not available".

Output formats:
  text     plain text fragments (default)
  events   one SSE event per fragment, ending with data: [DONE]
  raw      upstream SSE bytes forwarded verbatim`

const serveShortDesc string = "Run the ragstream relay server"

var serveFlags = []string{
	config.FlagListen,
	config.FlagFormat,
	config.FlagTimeout,
	config.FlagMaxPending,
	config.FlagBaseURL,
	config.FlagAccountID,
	config.FlagCollection,
	config.FlagModel,
	config.FlagMaxResults,
	config.FlagScoreThreshold,
	config.FlagRetries,
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.RelayFlags, serveFlags)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.RelayFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagFormat, &cmder.format)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagTimeout, &cmder.timeout)
	config.AddIntFlag(cmd, config.RelayFlags, config.FlagMaxPending, &cmder.maxPending)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagAccountID, &cmder.accountID)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagCollection, &cmder.collection)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagModel, &cmder.model)
	config.AddIntFlag(cmd, config.RelayFlags, config.FlagMaxResults, &cmder.maxResults)
	config.AddFloat64Flag(cmd, config.RelayFlags, config.FlagScoreThreshold, &cmder.scoreThreshold)
	config.AddIntFlag(cmd, config.RelayFlags, config.FlagRetries, &cmder.retries)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write JSON logs to stdout instead of pretty output")

	return cmd
}

func (c *serveCommander) run() error {
	var closeLog func()
	c.logger, closeLog = c.newLogger()
	defer closeLog()

	relayConfig, err := c.relayConfig()
	if err != nil {
		return err
	}

	r, err := relay.New(relayConfig, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// relayConfig resolves the relay configuration from c.cfg.
func (c *serveCommander) relayConfig() (relay.Config, error) {
	format, err := stream.ParseFormat(c.cfg.Relay.Format)
	if err != nil {
		return relay.Config{}, err
	}

	timeout, err := c.cfg.Relay.TimeoutDuration()
	if err != nil {
		return relay.Config{}, err
	}

	searcher, err := c.newSearcher(timeout)
	if err != nil {
		return relay.Config{}, err
	}

	return relay.Config{
		ListenAddr: c.cfg.Relay.Listen,
		Searcher:   searcher,
		Search: upstream.Options{
			Collection:     c.cfg.Upstream.Collection,
			Model:          c.cfg.Upstream.Model,
			RewriteQuery:   c.cfg.Upstream.RewriteQuery,
			MaxResults:     c.cfg.Upstream.MaxResults,
			ScoreThreshold: c.cfg.Upstream.ScoreThreshold,
		},
		Format:     format,
		Timeout:    timeout,
		MaxPending: c.cfg.Relay.MaxPending,
		FollowUp:   c.cfg.Relay.FollowUp,
		MCP:        c.cfg.Relay.MCP,
	}, nil
}

// newSearcher builds the AutoRAG binding. Missing credentials leave the
// binding unset rather than failing startup.
func (c *serveCommander) newSearcher(timeout time.Duration) (upstream.Searcher, error) {
	up := c.cfg.Upstream
	if up.AccountID == "" || up.APIToken == "" {
		c.logger.Warn("upstream credentials not configured, queries will fail",
			"missing_account_id", up.AccountID == "",
			"missing_api_token", up.APIToken == "",
		)
		return nil, nil
	}

	searcher, err := upstream.NewAutoRAG(upstream.AutoRAGConfig{
		BaseURL:   up.BaseURL,
		AccountID: up.AccountID,
		APIToken:  up.APIToken,
		Timeout:   timeout,
		Retries:   up.Retries,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating upstream client: %w", err)
	}

	c.logger.Info("using AutoRAG upstream",
		"base_url", up.BaseURL,
		"collection", up.Collection,
		"model", up.Model,
	)

	return searcher, nil
}

// newLogger builds the service logger: pretty output on a terminal, JSON
// otherwise, plus an optional JSON log file.
func (c *serveCommander) newLogger() (*slog.Logger, func()) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.jsonLogs && cliui.IsTerminal(os.Stdout)),
		logger.WithJSON(c.jsonLogs),
	)

	if c.logFile == "" {
		return console, func() {}
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		console.Warn("could not open log file, logging to stdout only",
			"path", c.logFile,
			"error", err,
		)
		return console, func() {}
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)

	return logger.Multi(console, file), func() { _ = f.Close() }
}
