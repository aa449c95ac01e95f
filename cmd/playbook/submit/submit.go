// Package submitcmder provides the submit command for merging a delta of
// bullet additions and edits into the playbook.
package submitcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/cmd/playbook/engine"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

var (
	createdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type submitCommander struct {
	deltaPath string
	jsonOut   bool

	sqlitePath    string
	indexProvider string
	indexPath     string
	embProvider   string
	embTarget     string
	embModel      string
	embDims       uint
	refineMode    string

	configDir string
	debug     bool

	cfg    *config.Config
	logger *zap.Logger
}

const submitLongDesc string = `Merge a delta of bullet additions and edits into the playbook.

The delta is a JSON document with "additions", "edits", and "traces" arrays.
Reads from the given file, or from stdin when the argument is "-" or omitted.

Additions are de-duplicated against the existing store: a new bullet whose
embedding is close enough to an existing one reinforces it instead of
creating a near-copy. Edits increment counters, reset them, or patch bodies.
The whole delta commits atomically; per-item problems are reported without
discarding the rest of the batch.

After the merge, the configured grow-and-refine policy prunes harmful and
redundant bullets.

Examples:
  playbook submit delta.json
  cat delta.json | playbook submit
  playbook submit delta.json --json
  playbook submit delta.json --refine-mode lazy`

const submitShortDesc string = "Merge a delta into the playbook"

func NewSubmitCmd() *cobra.Command {
	cmder := &submitCommander{}

	cmd := &cobra.Command{
		Use:   "submit [delta-file]",
		Short: submitShortDesc,
		Long:  submitLongDesc,
		Args:  cobra.MaximumNArgs(1),
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
				config.FlagRefineMode,
			})

			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cmder.deltaPath = args[0]
			}

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
	config.AddStringFlag(cmd, config.Flags, config.FlagRefineMode, &cmder.refineMode)
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output the submit report as JSON")

	return cmd
}

func (c *submitCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	delta, err := c.readDelta()
	if err != nil {
		return err
	}
	if delta.Empty() {
		return fmt.Errorf("delta is empty: nothing to submit")
	}

	cur, err := engine.Open(c.configDir, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	report, err := cur.SubmitDelta(ctx, delta)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	c.printReport(report)
	return nil
}

func (c *submitCommander) readDelta() (*playbook.Delta, error) {
	var data []byte
	var err error

	if c.deltaPath == "" || c.deltaPath == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading delta from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(c.deltaPath)
		if err != nil {
			return nil, fmt.Errorf("reading delta file: %w", err)
		}
	}

	var delta playbook.Delta
	if err := json.Unmarshal(data, &delta); err != nil {
		return nil, fmt.Errorf("parsing delta JSON: %w", err)
	}
	return &delta, nil
}

func (c *submitCommander) printReport(report *playbook.SubmitReport) {
	fmt.Printf("\n  %s\n\n", createdStyle.Render("Delta merged"))

	for _, id := range report.Merge.CreatedIDs {
		fmt.Printf("  %s %s\n", labelStyle.Render("created"), idStyle.Render(id))
	}
	for _, id := range report.Merge.ReinforcedIDs {
		fmt.Printf("  %s %s\n", labelStyle.Render("reinforced"), idStyle.Render(id))
	}
	for _, id := range report.Merge.EditedIDs {
		fmt.Printf("  %s %s\n", labelStyle.Render("edited"), idStyle.Render(id))
	}
	for _, div := range report.Merge.TextDivergences {
		fmt.Printf("  %s %s %s\n",
			warnStyle.Render("divergent text on"),
			idStyle.Render(div.BulletID),
			labelStyle.Render("(existing body kept)"),
		)
	}
	for _, failure := range report.Merge.Failures {
		fmt.Printf("  %s %s: %s\n",
			failStyle.Render("failed"),
			idStyle.Render(failure.Ref),
			labelStyle.Render(failure.Err),
		)
	}

	if ref := report.Refinement; ref != nil {
		for _, id := range ref.DeactivatedIDs {
			fmt.Printf("  %s %s\n", warnStyle.Render("deactivated"), idStyle.Render(id))
		}
		for _, fold := range ref.Folded {
			fmt.Printf("  %s %s %s %s\n",
				warnStyle.Render("folded"),
				idStyle.Render(fold.BulletID),
				labelStyle.Render("into"),
				idStyle.Render(fold.RepresentativeID),
			)
		}
	}

	fmt.Println()
}
