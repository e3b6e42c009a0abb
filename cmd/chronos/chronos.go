// Package chronoscmder
package chronoscmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/misaka-coder/chronos/cmd/chronos/chat"
	compactcmder "github.com/misaka-coder/chronos/cmd/chronos/compact"
	configcmder "github.com/misaka-coder/chronos/cmd/chronos/config"
	recallcmder "github.com/misaka-coder/chronos/cmd/chronos/recall"
	servecmder "github.com/misaka-coder/chronos/cmd/chronos/serve"
	versioncmder "github.com/misaka-coder/chronos/cmd/version"
)

const chronosLongDesc string = `Chronos is a tiered conversational memory engine for AI agents.

It keeps the raw dialogue log forever, compacts aging turns into dated
factual summaries, and lets the agent actively recall a specific day's
raw log mid-conversation.

  chronos chat      Interactive chat session
  chronos serve     Run the HTTP API server
  chronos recall    Look up one day's raw log directly
  chronos compact   Force a historian compaction pass`

const chronosShortDesc string = "Chronos - Tiered Agent Memory"

func NewChronosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chronos",
		Short: chronosShortDesc,
		Long:  chronosLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chronos/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(compactcmder.NewCompactCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
