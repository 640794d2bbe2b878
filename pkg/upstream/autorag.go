package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Cloudflare REST API root.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	defaultTimeout      = 5 * time.Minute
	defaultRetryBackoff = 500 * time.Millisecond
)

// AutoRAGConfig configures an AutoRAG client.
type AutoRAGConfig struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// AccountID is the Cloudflare account that owns the RAG instance.
	AccountID string

	// APIToken is sent as a bearer token.
	APIToken string

	// Timeout bounds a whole call, including reading the streamed body.
	// Defaults to 5 minutes.
	Timeout time.Duration

	// Retries is the number of extra attempts after a transport error or a
	// 5xx response. Zero fails fast.
	Retries int

	// RetryBackoff is the fixed wait between attempts.
	RetryBackoff time.Duration

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// AutoRAG is a Searcher backed by the Cloudflare AutoRAG "AI search" REST API.
type AutoRAG struct {
	baseURL    string
	accountID  string
	apiToken   string
	retries    int
	backoff    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// aiSearchRequest is the JSON body of an ai-search call.
type aiSearchRequest struct {
	Query          string          `json:"query"`
	Model          string          `json:"model,omitempty"`
	RewriteQuery   bool            `json:"rewrite_query,omitempty"`
	MaxNumResults  int             `json:"max_num_results,omitempty"`
	RankingOptions *rankingOptions `json:"ranking_options,omitempty"`
	Stream         bool            `json:"stream"`
}

type rankingOptions struct {
	ScoreThreshold float64 `json:"score_threshold"`
}

// NewAutoRAG creates an AutoRAG client. Both the account ID and API token are
// required.
func NewAutoRAG(c AutoRAGConfig) (*AutoRAG, error) {
	if c.AccountID == "" {
		return nil, errors.New("account id is required")
	}
	if c.APIToken == "" {
		return nil, errors.New("api token is required")
	}
	if c.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}

	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &AutoRAG{
		baseURL:    strings.TrimRight(c.BaseURL, "/"),
		accountID:  c.AccountID,
		apiToken:   c.APIToken,
		retries:    c.Retries,
		backoff:    c.RetryBackoff,
		httpClient: c.HTTPClient,
		logger:     c.Logger,
	}, nil
}

// Search calls the ai-search endpoint for req.Collection. On success the
// returned value is the *http.Response whose body the caller must close.
func (a *AutoRAG) Search(ctx context.Context, req *SearchRequest) (any, error) {
	if req.Collection == "" {
		return nil, &Error{Err: errors.New("collection is required")}
	}

	body, err := json.Marshal(newAISearchRequest(req))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("encoding request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/autorag/rags/%s/ai-search",
		a.baseURL, url.PathEscape(a.accountID), url.PathEscape(req.Collection))

	var lastErr *Error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			a.logger.Warn("retrying upstream search",
				"attempt", attempt+1,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, &Error{Err: ctx.Err()}
			case <-time.After(a.backoff):
			}
		}

		resp, err := a.do(ctx, endpoint, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !err.retryable() || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (a *AutoRAG) do(ctx context.Context, endpoint string, body []byte) (*http.Response, *Error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiToken)

	a.logger.Debug("calling upstream", "url", endpoint)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	return resp, nil
}

func newAISearchRequest(req *SearchRequest) *aiSearchRequest {
	out := &aiSearchRequest{
		Query:         req.Query,
		Model:         req.Model,
		RewriteQuery:  req.RewriteQuery,
		MaxNumResults: req.MaxResults,
		Stream:        req.Stream,
	}
	if req.ScoreThreshold > 0 {
		out.RankingOptions = &rankingOptions{ScoreThreshold: req.ScoreThreshold}
	}
	return out
}
