// Package configcmder provides the config command for managing persistent
// ragstream configuration stored in the .ragstream/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragstream/pkg/config"
)

const configLongDesc string = `Manage persistent ragstream configuration.

Configuration is stored as config.toml in the .ragstream/ directory and
provides default values for command flags. Environment variables prefixed
with RAGSTREAM_ override the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.format, relay.timeout, relay.max_pending,
  relay.follow_up, relay.mcp,
  upstream.base_url, upstream.account_id, upstream.api_token,
  upstream.collection, upstream.model, upstream.rewrite_query,
  upstream.max_results, upstream.score_threshold, upstream.retries,
  client.target

Use subcommands to get, set, or list configuration values:
  ragstream config set <key> <value>    Set a configuration value
  ragstream config get <key>            Get a configuration value
  ragstream config list                 List all configuration values

Examples:
  ragstream config set upstream.collection my-rag
  ragstream config set relay.format events
  ragstream config get upstream.model
  ragstream config list`

const configShortDesc string = "Manage persistent ragstream configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}
