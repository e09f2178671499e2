package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// workflow is a titled group of example invocations. Text after '#' is
// printed dimmed.
type workflow struct {
	title    string
	commands []string
}

var workflows = []workflow{
	{
		title: "First import",
		commands: []string{
			"b3tracker config path                    # Where config.toml lives",
			"b3tracker import movimentacao.csv        # Parse and store the B3 export",
			"b3tracker positions                      # Open positions at current quotes",
		},
	},
	{
		title: "Ticker changes",
		commands: []string{
			"b3tracker import mov.csv --actions acoes.csv",
			"b3tracker import mov.csv --policy after_effective_date # Only rows after the change",
		},
	},
	{
		title: "Real estate funds",
		commands: []string{
			"b3tracker positions --type fii           # FII holdings only",
			"b3tracker fii score HGLG11               # Fundamentals and quality score",
			"b3tracker fii rank 7 --top 5             # Rank a sector segment",
			"b3tracker fii monitor                    # Buy/sell panel for held FIIs",
		},
	},
	{
		title: "Technical analysis",
		commands: []string{
			"b3tracker indicators PETR4               # All indicators, 1y window",
			"b3tracker indicators VALE3 -p 6mo -i rsi,macd",
		},
	},
	{
		title: "Dashboard",
		commands: []string{
			"b3tracker serve --listen :8080           # JSON API and /metrics",
			"b3tracker status                         # Last import and data freshness",
			"b3tracker transactions --all --export movimentos.csv",
		},
	},
}

func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "examples",
		Short:             "Show common workflow examples",
		PersistentPreRun:  func(cmd *cobra.Command, args []string) {},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			output.Bold("Common Workflow Examples")
			output.Println()

			for _, ex := range workflows {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}
		},
	}
}
