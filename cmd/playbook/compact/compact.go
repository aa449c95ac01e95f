// Package compactcmder provides the compact command for hard-deleting
// long-deactivated bullets.
package compactcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/cmd/playbook/engine"
	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/logger"
)

type compactCommander struct {
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

const compactLongDesc string = `Hard-delete bullets that have been inactive past the retention window.

Deactivation (by the refinement policies) is a soft delete: the bullet stays
in the store for audit and possible recovery. Compact permanently removes
inactive bullets whose last touch is older than curator.retention.

Examples:
  playbook compact
  playbook compact --json`

const compactShortDesc string = "Remove long-deactivated bullets"

func NewCompactCmd() *cobra.Command {
	cmder := &compactCommander{}

	cmd := &cobra.Command{
		Use:   "compact",
		Short: compactShortDesc,
		Long:  compactLongDesc,
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
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output removed bullet ids as JSON")

	return cmd
}

func (c *compactCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cur, err := engine.Open(c.configDir, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	var removed []string
	err = cliui.Step(os.Stderr, "Compacting playbook", func() error {
		var stepErr error
		removed, stepErr = cur.Compact(ctx)
		return stepErr
	})
	if err != nil {
		return err
	}

	if c.jsonOut {
		if removed == nil {
			removed = []string{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(removed)
	}

	fmt.Printf("Removed %d bullets.\n", len(removed))
	return nil
}
