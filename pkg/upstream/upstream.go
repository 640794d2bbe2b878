// Package upstream is the adapter between the relay and the hosted RAG
// service. It builds the effective prompt for a query, issues the search with
// streaming enabled, and normalizes whatever the service hands back into a
// single Result.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Searcher issues an AI search against the RAG service. It is the injected
// "binding" to the hosted service.
//
// The returned value is one of three shapes: an *http.Response carrying the
// event stream, an io.Reader producing it directly, or a fully materialized
// value (string, []byte, or any JSON-encodable value). Callers resolve the
// shape once with Normalize.
type Searcher interface {
	Search(ctx context.Context, req *SearchRequest) (any, error)
}

// SearchFunc adapts a function to the Searcher interface.
type SearchFunc func(ctx context.Context, req *SearchRequest) (any, error)

// Search calls f(ctx, req).
func (f SearchFunc) Search(ctx context.Context, req *SearchRequest) (any, error) {
	return f(ctx, req)
}

// Query is the caller's question plus optional prior-turn context.
type Query struct {
	Text             string
	IsFollowUp       bool
	PreviousResponse string
}

// Options are the fixed search parameters sent with every query.
type Options struct {
	// Collection is the RAG instance name to search (e.g. "aopa-rag").
	Collection string

	// Model is the generation model the service should use. Empty uses the
	// service default.
	Model string

	// RewriteQuery asks the service to rewrite the query before retrieval.
	RewriteQuery bool

	// MaxResults caps the number of retrieved chunks. Zero uses the service default.
	MaxResults int

	// ScoreThreshold drops retrieved chunks below this relevance score.
	// Zero disables the threshold.
	ScoreThreshold float64
}

// SearchRequest is one outbound call to the RAG service.
type SearchRequest struct {
	Collection     string
	Query          string
	Model          string
	RewriteQuery   bool
	MaxResults     int
	ScoreThreshold float64
	Stream         bool
}

// NewSearchRequest builds the outbound request for prompt with opts applied
// and streaming enabled.
func NewSearchRequest(prompt string, opts Options) *SearchRequest {
	return &SearchRequest{
		Collection:     opts.Collection,
		Query:          prompt,
		Model:          opts.Model,
		RewriteQuery:   opts.RewriteQuery,
		MaxResults:     opts.MaxResults,
		ScoreThreshold: opts.ScoreThreshold,
		Stream:         true,
	}
}

// EffectivePrompt returns the text sent upstream for q. A follow-up with
// prior context is rewritten to ask for information the previous answer did
// not cover; anything else is sent as-is.
func EffectivePrompt(q Query) string {
	if !q.IsFollowUp || strings.TrimSpace(q.PreviousResponse) == "" {
		return q.Text
	}

	return fmt.Sprintf(
		"Based on this previous context: %s, %s. Provide new information not covered before.",
		q.PreviousResponse, q.Text,
	)
}

// Ask runs q against s with opts applied and normalizes the result. A nil s
// yields ErrUnavailable without any call being made; every other failure is
// an *Error.
func Ask(ctx context.Context, s Searcher, q Query, opts Options) (*Result, error) {
	if s == nil {
		return nil, ErrUnavailable
	}

	v, err := s.Search(ctx, NewSearchRequest(EffectivePrompt(q), opts))
	if err != nil {
		var ue *Error
		if errors.As(err, &ue) {
			return nil, err
		}
		return nil, &Error{Err: err}
	}

	return Normalize(v)
}
