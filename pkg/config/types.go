package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent ragstream configuration stored as
// config.toml in the .ragstream/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Relay    RelayConfig    `toml:"relay"`
	Upstream UpstreamConfig `toml:"upstream"`
	Client   ClientConfig   `toml:"client"`
}

// RelayConfig holds settings for the relay HTTP server.
type RelayConfig struct {
	Listen string `toml:"listen,omitempty"`

	// Format is the output framing: text, events, or raw.
	Format string `toml:"format,omitempty"`

	// Timeout bounds a whole request, as a Go duration string (e.g. "5m").
	Timeout string `toml:"timeout,omitempty"`

	// MaxPending bounds a partial upstream payload held for completion, in bytes.
	MaxPending int `toml:"max_pending,omitempty"`

	// FollowUp enables prompt augmentation from prior-turn context.
	FollowUp bool `toml:"follow_up"`

	// MCP enables the /mcp endpoint.
	MCP bool `toml:"mcp"`
}

// UpstreamConfig holds the AutoRAG binding and its fixed search parameters.
type UpstreamConfig struct {
	BaseURL        string  `toml:"base_url,omitempty"`
	AccountID      string  `toml:"account_id,omitempty"`
	APIToken       string  `toml:"api_token,omitempty"`
	Collection     string  `toml:"collection,omitempty"`
	Model          string  `toml:"model,omitempty"`
	RewriteQuery   bool    `toml:"rewrite_query"`
	MaxResults     int     `toml:"max_results,omitempty"`
	ScoreThreshold float64 `toml:"score_threshold,omitempty"`
	Retries        int     `toml:"retries,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running relay
// (e.g. ragstream ask). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// TimeoutDuration parses Timeout.
func (r RelayConfig) TimeoutDuration() (time.Duration, error) {
	if r.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid relay.timeout: %w", err)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"relay.listen": stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.format": stringKey(func(c *Config) *string { return &c.Relay.Format }),
	"relay.timeout": {
		get: func(c *Config) string { return c.Relay.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for relay.timeout: %w", err)
			}
			c.Relay.Timeout = v
			return nil
		},
	},
	"relay.max_pending": intKey("relay.max_pending", func(c *Config) *int { return &c.Relay.MaxPending }),
	"relay.follow_up":   boolKey("relay.follow_up", func(c *Config) *bool { return &c.Relay.FollowUp }),
	"relay.mcp":         boolKey("relay.mcp", func(c *Config) *bool { return &c.Relay.MCP }),

	"upstream.base_url":      stringKey(func(c *Config) *string { return &c.Upstream.BaseURL }),
	"upstream.account_id":    stringKey(func(c *Config) *string { return &c.Upstream.AccountID }),
	"upstream.api_token":     stringKey(func(c *Config) *string { return &c.Upstream.APIToken }),
	"upstream.collection":    stringKey(func(c *Config) *string { return &c.Upstream.Collection }),
	"upstream.model":         stringKey(func(c *Config) *string { return &c.Upstream.Model }),
	"upstream.rewrite_query": boolKey("upstream.rewrite_query", func(c *Config) *bool { return &c.Upstream.RewriteQuery }),
	"upstream.max_results":   intKey("upstream.max_results", func(c *Config) *int { return &c.Upstream.MaxResults }),
	"upstream.score_threshold": {
		get: func(c *Config) string {
			if c.Upstream.ScoreThreshold == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Upstream.ScoreThreshold, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for upstream.score_threshold: %w", err)
			}
			c.Upstream.ScoreThreshold = f
			return nil
		},
	},
	"upstream.retries": intKey("upstream.retries", func(c *Config) *int { return &c.Upstream.Retries }),

	"client.target": stringKey(func(c *Config) *string { return &c.Client.Target }),
}
