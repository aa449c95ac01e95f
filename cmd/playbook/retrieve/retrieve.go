// Package retrievecmder provides the retrieve command for fetching the most
// relevant bullets for a query.
package retrievecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/cmd/playbook/engine"
	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/utils"
)

var (
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	bodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

type retrieveCommander struct {
	query  string
	kind   string
	topK   int
	quiet  bool
	render bool

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

const retrieveLongDesc string = `Retrieve the most relevant active bullets for a query.

The query is embedded and every active bullet is scored by a blend of cosine
similarity, counter-derived utility, and freshness. Results are ordered by
score, with ties broken deterministically.

Use --kind to restrict results to one bullet kind, --quiet to output only
bullet ids (for piping into a delta's edits), and --render to display bullet
bodies as markdown.

Examples:
  playbook retrieve "flaky integration tests"
  playbook retrieve "migration rollback" --kind pitfall --top 3
  playbook retrieve "retry strategy" --quiet
  playbook retrieve "release checklist" --render`

const retrieveShortDesc string = "Retrieve relevant bullets"

func NewRetrieveCmd() *cobra.Command {
	cmder := &retrieveCommander{}

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: retrieveShortDesc,
		Long:  retrieveLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

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
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of results to return (0 uses the configured default)")
	cmd.Flags().StringVar(&cmder.kind, "kind", "", "Restrict results to one bullet kind")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only bullet ids, one per line (for piping)")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render bullet bodies as markdown")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func (c *retrieveCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cur, err := engine.Open(c.configDir, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	results, err := cur.Retrieve(ctx, c.query, playbook.Kind(c.kind), c.topK)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		if !c.quiet {
			fmt.Println("No bullets found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range results {
			fmt.Println(result.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Bullets for:"),
		idStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	for i, result := range results {
		c.printResult(i+1, result)
	}

	return nil
}

func (c *retrieveCommander) printResult(rank int, result playbook.ScoredBullet) {
	fmt.Printf("  %s  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		kindStyle.Render(string(result.Kind)),
		idStyle.Render(result.ID),
	)

	if result.Title != "" {
		fmt.Printf("  %s\n", titleStyle.Render(result.Title))
	}

	if c.render {
		rendered, err := cliui.RenderMarkdown(result.Body)
		if err == nil {
			fmt.Print(rendered)
		} else {
			fmt.Printf("  %s\n", bodyStyle.Render(result.Body))
		}
	} else {
		body := strings.ReplaceAll(result.Body, "\n", " ")
		fmt.Printf("  %s\n", bodyStyle.Render(utils.Truncate(body, 120)))
	}

	fmt.Printf("  %s\n\n", dimStyle.Render(fmt.Sprintf(
		"helpful: %d  harmful: %d  touched: %s",
		result.HelpfulCount,
		result.HarmfulCount,
		result.Touched().Format("2006-01-02"),
	)))
}
