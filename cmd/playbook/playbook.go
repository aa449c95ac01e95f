// Package playbookcmder
package playbookcmder

import (
	"github.com/spf13/cobra"

	compactcmder "github.com/papercomputeco/playbook/cmd/playbook/compact"
	configcmder "github.com/papercomputeco/playbook/cmd/playbook/config"
	exportcmder "github.com/papercomputeco/playbook/cmd/playbook/export"
	initcmder "github.com/papercomputeco/playbook/cmd/playbook/init"
	retrievecmder "github.com/papercomputeco/playbook/cmd/playbook/retrieve"
	statscmder "github.com/papercomputeco/playbook/cmd/playbook/stats"
	submitcmder "github.com/papercomputeco/playbook/cmd/playbook/submit"
	versioncmder "github.com/papercomputeco/playbook/cmd/version"
)

const playbookLongDesc string = `Playbook is a curated, self-improving store of agent strategy notes.

Agents submit deltas of new and amended bullets after each task; the curator
merges them with semantic de-duplication, tracks helpful and harmful counts,
and prunes low-value bullets so the store keeps improving instead of bloating.

Common commands:
  playbook submit       Merge a delta of bullet additions and edits
  playbook retrieve     Fetch the most relevant bullets for a query
  playbook stats        Show store totals and per-kind counts
  playbook export       Dump all active bullets as JSON`

const playbookShortDesc string = "Playbook - Curated Agent Strategy Store"

func NewPlaybookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: playbookShortDesc,
		Long:  playbookLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .playbook/ directory location")

	// Add subcommands
	cmd.AddCommand(submitcmder.NewSubmitCmd())
	cmd.AddCommand(retrievecmder.NewRetrieveCmd())
	cmd.AddCommand(exportcmder.NewExportCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(compactcmder.NewCompactCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
