// Package statscmder provides the stats command for summarizing the playbook.
package statscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/cmd/playbook/engine"
	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

type statsCommander struct {
	jsonOut bool

	sqlitePath    string
	indexProvider string
	indexPath     string
	embProvider   string
	embTarget     string
	embModel      string
	embDims       uint

	configDir string
	debug     bool

	cfg    *config.Config
	logger *zap.Logger
}

const statsLongDesc string = `Show playbook totals and per-kind counts.

Reports the total and active bullet counts, the active breakdown by kind,
and the accumulated helpful and harmful counters.

Examples:
  playbook stats
  playbook stats --json`

const statsShortDesc string = "Show playbook statistics"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagSQLite,
				config.FlagIndexProvider,
				config.FlagIndexPath,
				config.FlagEmbeddingProv,
				config.FlagEmbeddingTgt,
				config.FlagEmbeddingModel,
				config.FlagEmbeddingDims,
			})

			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndexProvider, &cmder.indexProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndexPath, &cmder.indexPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embDims)
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output statistics as JSON")

	return cmd
}

func (c *statsCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cur, err := engine.Open(c.configDir, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	stats, err := cur.Stats(ctx)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render("total bullets:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", stats.TotalBullets)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("active bullets:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", stats.ActiveBullets)))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("helpful total:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", stats.HelpfulTotal)))
	fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("harmful total:"), cliui.ValueStyle.Render(fmt.Sprintf("%d", stats.HarmfulTotal)))

	kinds := make([]string, 0, len(stats.ByKind))
	for kind := range stats.ByKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		fmt.Printf("  %-10s %s\n", kind, cliui.DimStyle.Render(fmt.Sprintf("%d", stats.ByKind[playbook.Kind(kind)])))
	}
	if len(kinds) > 0 {
		fmt.Println()
	}

	return nil
}
