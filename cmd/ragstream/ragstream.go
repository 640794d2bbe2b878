// Package ragstreamcmder is the root of the ragstream command tree.
package ragstreamcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/ragstream/cmd/ragstream/ask"
	configcmder "github.com/papercomputeco/ragstream/cmd/ragstream/config"
	servecmder "github.com/papercomputeco/ragstream/cmd/ragstream/serve"
	versioncmder "github.com/papercomputeco/ragstream/cmd/version"
)

const ragstreamLongDesc string = `ragstream relays answers from a hosted RAG service as they are generated.

Run the relay and query it using:
  ragstream serve          Run the relay server
  ragstream ask            Ask the running relay a question
  ragstream config         Manage persistent configuration`

const ragstreamShortDesc string = "ragstream - streaming RAG relay"

func NewRagstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ragstream",
		Short:         ragstreamShortDesc,
		Long:          ragstreamLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.ragstream or ~/.ragstream)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
