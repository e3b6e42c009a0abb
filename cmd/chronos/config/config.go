// Package configcmder provides the config command for managing persistent
// chronos configuration stored in the .chronos/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent chronos configuration.

Configuration is stored as config.toml in the .chronos/ directory and
provides default values for command flags. CLI flags always take
precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_url,
  reasoner.provider, reasoner.model, reasoner.target, reasoner.api_key,
  historian.threshold, historian.history_limit,
  api.listen,
  eventstream.enabled, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  chronos config set <key> <value>    Set a configuration value
  chronos config get <key>            Get a configuration value
  chronos config list                 List all configuration values

Examples:
  chronos config set reasoner.provider anthropic
  chronos config set historian.threshold 50
  chronos config get storage.driver
  chronos config list`

const configShortDesc string = "Manage persistent chronos configuration"

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
