package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "relay.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen         = "listen"
	FlagFormat         = "format"
	FlagTimeout        = "timeout"
	FlagMaxPending     = "max-pending"
	FlagBaseURL        = "base-url"
	FlagAccountID      = "account-id"
	FlagCollection     = "collection"
	FlagModel          = "model"
	FlagMaxResults     = "max-results"
	FlagScoreThreshold = "score-threshold"
	FlagRetries        = "retries"
	FlagTarget         = "target"
)

// RelayFlags are the flags accepted by the serve command.
var RelayFlags = FlagSet{
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagFormat:         {Name: "format", Shorthand: "f", ViperKey: "relay.format", Description: "Output format (text, events, raw)"},
	FlagTimeout:        {Name: "timeout", ViperKey: "relay.timeout", Description: "Per-request timeout (e.g. 5m)"},
	FlagMaxPending:     {Name: "max-pending", ViperKey: "relay.max_pending", Description: "Largest partial upstream payload to hold, in bytes"},
	FlagBaseURL:        {Name: "base-url", ViperKey: "upstream.base_url", Description: "Upstream API root URL"},
	FlagAccountID:      {Name: "account-id", ViperKey: "upstream.account_id", Description: "Upstream account ID"},
	FlagCollection:     {Name: "collection", Shorthand: "c", ViperKey: "upstream.collection", Description: "RAG collection to search"},
	FlagModel:          {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Generation model (empty for the service default)"},
	FlagMaxResults:     {Name: "max-results", ViperKey: "upstream.max_results", Description: "Maximum retrieved chunks (0 for the service default)"},
	FlagScoreThreshold: {Name: "score-threshold", ViperKey: "upstream.score_threshold", Description: "Minimum relevance score (0 disables)"},
	FlagRetries:        {Name: "retries", ViperKey: "upstream.retries", Description: "Extra attempts after a failed upstream call"},
}

// ClientFlags are the flags accepted by client commands.
var ClientFlags = FlagSet{
	FlagTarget: {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "Relay URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloat64Flag registers a float64 flag on cmd from the given FlagSet.
func AddFloat64Flag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// Keys returns the registry keys of fs.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	return keys
}

func defaultViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
