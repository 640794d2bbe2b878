// Package askcmder provides the ask command for querying a running relay.
package askcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragstream/pkg/cliui"
	"github.com/papercomputeco/ragstream/pkg/config"
	"github.com/papercomputeco/ragstream/pkg/logger"
	"github.com/papercomputeco/ragstream/pkg/stream"
	"github.com/papercomputeco/ragstream/pkg/upstream"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("ragstream> ")
)

type askCommander struct {
	target  string
	render  bool
	debug   bool
	timeout time.Duration

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

// askRequest mirrors the relay's POST /api/stream body.
type askRequest struct {
	Query            string `json:"query"`
	IsFollowUp       bool   `json:"isFollowUp,omitempty"`
	PreviousResponse string `json:"previousResponse,omitempty"`
}

const askLongDesc string = `Ask a running ragstream relay a question.

With a question as arguments, the answer is streamed to stdout and the
command exits. Without arguments an interactive session starts; each
question after the first is sent as a follow-up to the previous answer.

On a terminal the answer is rendered as markdown once complete; use
--render=false to print fragments as they arrive.

Examples:
  ragstream ask "What does AOPA offer student pilots?"
  ragstream ask --target http://relay.internal:8080
  ragstream ask --render=false "Summarize the medical requirements"`

const askShortDesc string = "Ask the relay a question"

func NewAskCmd() *cobra.Command {
	return newAskCmd(&askCommander{})
}

func newAskCmd(cmder *askCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: askShortDesc,
		Long:  askLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{config.FlagTarget})
			cmder.target = strings.TrimRight(v.GetString("client.target"), "/")

			timeout, err := config.FromViper(v).Relay.TimeoutDuration()
			if err != nil {
				return err
			}
			cmder.timeout = timeout
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			if cmder.in == nil {
				cmder.in = cmd.InOrStdin()
			}
			if cmder.out == nil {
				cmder.out = cmd.OutOrStdout()
			}
			if cmder.errOut == nil {
				cmder.errOut = cmd.ErrOrStderr()
			}

			return cmder.run(cmd.Context(), args)
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagTarget, &cmder.target)
	cmd.Flags().BoolVar(&cmder.render, "render", true, "Render the answer as markdown when writing to a terminal")

	return cmd
}

func (c *askCommander) run(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.logger == nil {
		c.logger = logger.New(
			logger.WithDebug(c.debug),
			logger.WithPretty(true),
			logger.WithWriter(c.errOut),
		)
	}

	if len(args) > 0 {
		_, err := c.ask(ctx, strings.Join(args, " "), "")
		return err
	}

	return c.interactive(ctx)
}

// interactive reads questions line by line, chaining each answer into the
// next question as follow-up context.
func (c *askCommander) interactive(ctx context.Context) error {
	fmt.Fprintf(c.out, "\n  %s %s\n",
		cliui.KeyStyle.Render("Relay:"),
		cliui.NameStyle.Render(c.target),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type a question and press Enter. /new starts over, /exit or Ctrl+D quits."))

	var previous string
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/new":
			previous = ""
			fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("New conversation"))
			continue
		}

		answer, err := c.ask(ctx, input, previous)
		if err != nil {
			fmt.Fprintf(c.errOut, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}
		previous = answer
		fmt.Fprint(c.out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// ask sends one question to the relay and writes the answer to c.out.
// Returns the full answer text.
func (c *askCommander) ask(ctx context.Context, query, previous string) (string, error) {
	body, err := json.Marshal(askRequest{
		Query:            query,
		IsFollowUp:       previous != "",
		PreviousResponse: previous,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.target + "/api/stream"
	c.logger.Debug("sending question", "url", url, "follow_up", previous != "")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	// An event-stream body (events or raw relay format) is decoded back to
	// text; a plain-text body is copied as it arrives.
	res := &upstream.Result{Kind: upstream.KindValue, Body: resp.Body}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		res.Kind = upstream.KindStream
	}

	if c.render && cliui.IsTerminal(c.out) {
		return c.renderAnswer(ctx, res)
	}

	var answer strings.Builder
	if cliui.IsTerminal(c.out) {
		fmt.Fprint(c.out, assistantPrompt)
	}
	_, err = stream.Copy(ctx, io.MultiWriter(c.out, &answer), res, stream.Options{
		Format: stream.FormatText,
		Logger: c.logger,
	})
	if err != nil {
		return answer.String(), fmt.Errorf("reading answer: %w", err)
	}

	return answer.String(), nil
}

// renderAnswer collects the whole answer behind a spinner and prints it as
// rendered markdown.
func (c *askCommander) renderAnswer(ctx context.Context, res *upstream.Result) (string, error) {
	var answer strings.Builder
	counter := &cliui.Counter{}
	err := cliui.StepCounting(c.errOut, "Thinking", counter, func() error {
		_, err := stream.Copy(ctx, io.MultiWriter(&answer, counter), res, stream.Options{
			Format: stream.FormatText,
			Logger: c.logger,
		})
		return err
	})
	if err != nil {
		return answer.String(), fmt.Errorf("reading answer: %w", err)
	}

	rendered, err := cliui.RenderMarkdown(answer.String())
	if err != nil {
		c.logger.Debug("markdown rendering failed", "error", err)
	}
	fmt.Fprint(c.out, rendered)

	return answer.String(), nil
}

