// Package configcmder provides the config command for managing persistent
// engram configuration stored in the ~/.engram directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent engram configuration.

Configuration is stored as config.toml in the ~/.engram directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  store.provider, store.sqlite_path,
  postgres.host, postgres.port, postgres.database, postgres.user,
  extraction.target, extraction.model, extraction.threshold,
  injection.format, injection.max_identity,
  events.provider, events.topic,
  api.listen

Use subcommands to get, set, or list configuration values:
  engram config set <key> <value>    Set a configuration value
  engram config get <key>            Get a configuration value
  engram config list                 List all configuration values

Examples:
  engram config set store.provider postgres
  engram config set extraction.model llama3.1
  engram config get injection.format
  engram config list`

const configShortDesc string = "Manage persistent engram configuration"

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
