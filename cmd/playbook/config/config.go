// Package configcmder provides the config command for managing persistent
// playbook configuration stored in the .playbook/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent playbook configuration.

Configuration is stored as config.toml in the .playbook/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.sqlite_path,
  index.provider, index.path,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  curator.dedup_threshold, curator.cross_kind_dedup, curator.refine_mode,
  curator.lazy_window, curator.grace_period, curator.harmful_margin,
  curator.retention,
  retrieval.top_k, retrieval.w_sim, retrieval.w_util, retrieval.w_fresh,
  retrieval.freshness_half_life

Use subcommands to get, set, or list configuration values:
  playbook config set <key> <value>    Set a configuration value
  playbook config get <key>            Get a configuration value
  playbook config list                 List all configuration values

Examples:
  playbook config set curator.refine_mode lazy
  playbook config set embedding.model nomic-embed-text
  playbook config get curator.dedup_threshold
  playbook config list`

const configShortDesc string = "Manage persistent playbook configuration"

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
