package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"b3-tracker/internal/analysis/scoring"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
	"b3-tracker/internal/portfolio"
	"b3-tracker/internal/store"
	"b3-tracker/pkg/utils"
)

func addFIICommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "fii",
		Short: "Real estate fund (FII) analysis",
		Long:  "Score single funds, rank a sector segment and run the monitoring panel.",
	}
	cmd.AddCommand(newFIIScoreCmd(app))
	cmd.AddCommand(newFIIRankCmd(app))
	cmd.AddCommand(newFIIMonitorCmd(app))
	rootCmd.AddCommand(cmd)
}

func newFIIScoreCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "score <ticker>",
		Short:   "Fundamentals and quality score of a fund",
		Example: "  b3tracker fii score HGLG11",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			report, err := app.Funds.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.Metrics.RecordWarnings(report.Warnings)

			if output.IsJSON() {
				return output.JSON(report)
			}

			lines := make([]string, 0, len(report.Analysis))
			for _, f := range report.Analysis {
				lines = append(lines, PadRight(f.Label, 28)+" "+formatField(f))
			}
			output.Box(report.Fund.Ticker, lines)
			output.Printf("Score: %s\n", scoreText(output, report.Fund.Score))
			output.Warnings(report.Warnings)
			return nil
		},
	}
}

func formatField(f scoring.Field) string {
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

func scoreText(output *Output, score float64) string {
	text := fmt.Sprintf("%.1f / %.0f", score, scoring.MaxScore)
	switch {
	case score >= 7:
		return output.Green(text)
	case score >= 4:
		return output.Yellow(text)
	}
	return output.Red(text)
}

func newFIIRankCmd(app *App) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "rank <segment-id>",
		Short: "Rank the funds of a sector segment",
		Long: `List the funds of a segment, fetch their fundamentals concurrently and
rank them per column: percentage and DY columns descending, the rest
ascending. Score Total is the mean rank; rows are ordered by it, highest first.
Funds whose page cannot be fetched are excluded and reported.`,
		Example: "  b3tracker fii rank 7 --top 5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			segment, err := strconv.Atoi(args[0])
			if err != nil {
				return apperrors.NewValidationError("segment-id", args[0], "segment id must be an integer")
			}
			if !cmd.Flags().Changed("top") {
				top = app.Config.Scoring.TopN
			}

			ranking, err := app.Funds.RankSegment(cmd.Context(), segment)
			if err != nil {
				return err
			}
			app.Metrics.RecordWarnings(ranking.Warnings)

			if output.IsJSON() {
				return output.JSON(ranking)
			}

			output.Bold("Top %d, segment %d", top, segment)
			printRanking(output, scoring.Top(ranking.Rows, top), false)
			output.Println()

			output.Bold("Full ranking (%d funds)", len(ranking.Rows))
			printRanking(output, ranking.Rows, true)
			if len(ranking.Excluded) > 0 {
				output.Println()
				output.Warning("Excluded: %v", ranking.Excluded)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 0, "rows in the summary table (default: scoring.top_n)")
	return cmd
}

func printRanking(output *Output, rows []models.RankedFII, full bool) {
	headers := []string{"#", "Ticker", "Price", "DY", "P/VP", "Score", "Total"}
	if full {
		headers = []string{"#", "Ticker", "Name", "Price", "DY", "P/VP", "Liquidity", "Score", "Total"}
		for _, c := range scoring.RankColumns {
			headers = append(headers, "r:"+c.Name)
		}
	}
	table := NewTable(output, headers...)
	for _, r := range rows {
		if !full {
			table.AddRow(fmt.Sprint(r.Position), r.Ticker, utils.FormatBRL(r.Price),
				fmt.Sprintf("%.2f%%", r.DividendYield), fmt.Sprintf("%.2f", r.PVP),
				fmt.Sprintf("%.1f", r.Score), fmt.Sprintf("%.2f", r.ScoreTotal))
			continue
		}
		cells := []string{fmt.Sprint(r.Position), r.Ticker, TruncateString(r.CompanyName, 24),
			utils.FormatBRL(r.Price), fmt.Sprintf("%.2f%%", r.DividendYield), fmt.Sprintf("%.2f", r.PVP),
			utils.FormatCompact(r.DailyLiquidity), fmt.Sprintf("%.1f", r.Score), fmt.Sprintf("%.2f", r.ScoreTotal)}
		for _, c := range scoring.RankColumns {
			cells = append(cells, strconv.FormatFloat(r.Ranks[c.Name], 'f', -1, 64))
		}
		table.AddRow(cells...)
	}
	table.Render()
}

func newFIIMonitorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor [tickers...]",
		Short: "Buy/sell panel for a list of funds",
		Long: `Score each fund and combine dividend yield, P/VP and quality score into
points (0-100) and a recommendation. Without arguments every FII traded
in the imported portfolio is monitored.`,
		Example: `  b3tracker fii monitor HGLG11 KNRI11 MXRF11
  b3tracker fii monitor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tickers := make([]string, 0, len(args))
			for _, a := range args {
				tickers = append(tickers, utils.SplitTickers(a)...)
			}
			if len(tickers) == 0 {
				held, err := heldFIIs(cmd, app)
				if err != nil {
					return err
				}
				tickers = held
			}
			if len(tickers) == 0 {
				return apperrors.NewValidationError("tickers", "", "no tickers given and no FIIs held")
			}

			panel, err := app.Funds.Monitor(cmd.Context(), tickers)
			if err != nil {
				return err
			}
			app.Metrics.RecordWarnings(panel.Warnings)

			if output.IsJSON() {
				return output.JSON(panel)
			}

			table := NewTable(output, "Ticker", "Price", "DY", "P/VP", "Score", "Points", "Recommendation")
			for _, d := range panel.Decisions {
				table.AddRow(d.Ticker, utils.FormatBRL(d.Price), fmt.Sprintf("%.2f%%", d.DividendYield),
					fmt.Sprintf("%.2f", d.PVP), fmt.Sprintf("%.1f", d.Score), fmt.Sprintf("%.1f", d.Points),
					output.Recommendation(d.Recommendation))
			}
			table.Render()
			output.Warnings(panel.Warnings)
			return nil
		},
	}
}

// heldFIIs lists the FII tickers traded in the imported portfolio.
func heldFIIs(cmd *cobra.Command, app *App) ([]string, error) {
	st, err := app.requireStore()
	if err != nil {
		return nil, err
	}
	txs, err := st.GetTransactions(cmd.Context(), store.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	return portfolio.Tickers(txs, portfolio.FIIFilter()), nil
}
