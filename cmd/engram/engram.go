// Package engramcmder
package engramcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/engramhq/engram/cmd/engram/config"
	servecmder "github.com/engramhq/engram/cmd/engram/serve"
	showcmder "github.com/engramhq/engram/cmd/engram/show"
	updatecmder "github.com/engramhq/engram/cmd/engram/update"
	versioncmder "github.com/engramhq/engram/cmd/version"
)

const engramLongDesc string = `Engram is durable conversational memory for your agents.

Run services using:
  engram serve           Run the memory API server

Inspect and update memory using:
  engram show <user>     Print a user's memory profile
  engram update <user>   Fold conversation turns into a user's memory`

const engramShortDesc string = "Engram - Durable Conversational Memory"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: engramShortDesc,
		Long:  engramLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Config directory (default: ~/.engram)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(showcmder.NewShowCmd())
	cmd.AddCommand(updatecmder.NewUpdateCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
