package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/ragstream/pkg/dotdir"
)

// EnvPrefix is the prefix of environment variables read by InitViper.
const EnvPrefix = "RAGSTREAM"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RAGSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RAGSTREAM_RELAY_LISTEN, RAGSTREAM_UPSTREAM_API_TOKEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper resolves a Config from every layer registered on v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Relay: RelayConfig{
			Listen:     v.GetString("relay.listen"),
			Format:     v.GetString("relay.format"),
			Timeout:    v.GetString("relay.timeout"),
			MaxPending: v.GetInt("relay.max_pending"),
			FollowUp:   v.GetBool("relay.follow_up"),
			MCP:        v.GetBool("relay.mcp"),
		},
		Upstream: UpstreamConfig{
			BaseURL:        v.GetString("upstream.base_url"),
			AccountID:      v.GetString("upstream.account_id"),
			APIToken:       v.GetString("upstream.api_token"),
			Collection:     v.GetString("upstream.collection"),
			Model:          v.GetString("upstream.model"),
			RewriteQuery:   v.GetBool("upstream.rewrite_query"),
			MaxResults:     v.GetInt("upstream.max_results"),
			ScoreThreshold: v.GetFloat64("upstream.score_threshold"),
			Retries:        v.GetInt("upstream.retries"),
		},
		Client: ClientConfig{
			Target: v.GetString("client.target"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Relay
	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.format", d.Relay.Format)
	v.SetDefault("relay.timeout", d.Relay.Timeout)
	v.SetDefault("relay.max_pending", d.Relay.MaxPending)
	v.SetDefault("relay.follow_up", d.Relay.FollowUp)
	v.SetDefault("relay.mcp", d.Relay.MCP)

	// Upstream
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.account_id", d.Upstream.AccountID)
	v.SetDefault("upstream.api_token", d.Upstream.APIToken)
	v.SetDefault("upstream.collection", d.Upstream.Collection)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.rewrite_query", d.Upstream.RewriteQuery)
	v.SetDefault("upstream.max_results", d.Upstream.MaxResults)
	v.SetDefault("upstream.score_threshold", d.Upstream.ScoreThreshold)
	v.SetDefault("upstream.retries", d.Upstream.Retries)

	// Client
	v.SetDefault("client.target", d.Client.Target)
}
