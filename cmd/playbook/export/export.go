// Package exportcmder provides the export command for dumping the active
// playbook as JSON.
package exportcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/cmd/playbook/engine"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/logger"
)

type exportCommander struct {
	output string

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

const exportLongDesc string = `Export all active bullets as a JSON array.

The dump is a point-in-time snapshot: embeddings are stripped, and inactive
bullets are excluded. Writes to stdout unless --output is given.

Examples:
  playbook export
  playbook export --output playbook.json
  playbook export | jq '.[] | select(.kind == "pitfall")'`

const exportShortDesc string = "Export active bullets as JSON"

func NewExportCmd() *cobra.Command {
	cmder := &exportCommander{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: exportShortDesc,
		Long:  exportLongDesc,
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
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Write the export to a file instead of stdout")

	return cmd
}

func (c *exportCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cur, err := engine.Open(c.configDir, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	bullets, err := cur.Export(ctx)
	if err != nil {
		return err
	}

	out := os.Stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bullets); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	if c.output != "" {
		fmt.Printf("Exported %d bullets to %s\n", len(bullets), c.output)
	}
	return nil
}
