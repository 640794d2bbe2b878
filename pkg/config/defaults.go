package config

import "github.com/papercomputeco/ragstream/pkg/upstream"

const (
	defaultRelayListen  = ":8080"
	defaultRelayFormat  = "text"
	defaultRelayTimeout = "5m"
	defaultMaxPending   = 64 * 1024

	defaultCollection     = "aopa-rag"
	defaultModel          = "@cf/meta/llama-3.1-8b-instruct"
	defaultMaxResults     = 5
	defaultScoreThreshold = 0.3

	defaultClientTarget = "http://localhost:8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:     defaultRelayListen,
			Format:     defaultRelayFormat,
			Timeout:    defaultRelayTimeout,
			MaxPending: defaultMaxPending,
			FollowUp:   true,
			MCP:        true,
		},
		Upstream: UpstreamConfig{
			BaseURL:        upstream.DefaultBaseURL,
			Collection:     defaultCollection,
			Model:          defaultModel,
			RewriteQuery:   true,
			MaxResults:     defaultMaxResults,
			ScoreThreshold: defaultScoreThreshold,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
