package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"b3-tracker/internal/b3"
	"b3-tracker/internal/corporate"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/logging"
	"b3-tracker/internal/models"
	"b3-tracker/internal/portfolio"
	"b3-tracker/internal/store"
	"b3-tracker/pkg/utils"
)

// ImportSummary is the outcome of one import.
type ImportSummary struct {
	Batch        store.ImportBatch             `json:"batch"`
	Policy       string                        `json:"action_policy"`
	Actions      int                           `json:"corporate_actions"`
	ByAssetType  map[models.AssetType]int      `json:"by_asset_type"`
	ByInvestment map[models.InvestmentType]int `json:"by_investment_type"`
	Warnings     []apperrors.Warning           `json:"warnings,omitempty"`
}

func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newTransactionsCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	var (
		actionsPath string
		policyFlag  string
	)

	cmd := &cobra.Command{
		Use:   "import <export.csv>",
		Short: "Import the B3 movement export",
		Long: `Parse the movement export downloaded from the B3 investor area,
apply the corporate-action table and replace the stored transactions.`,
		Example: `  b3tracker import movimentacao-2024.csv
  b3tracker import movimentacao.csv --actions acoes.csv --policy after_effective_date`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.requireStore()
			if err != nil {
				return err
			}

			if policyFlag == "" {
				policyFlag = app.Config.Reconcile.ActionPolicy
			}
			if actionsPath == "" {
				actionsPath = app.Config.Data.CorporateActionsPath
			}

			summary, err := runImport(cmd, app, st, args[0], actionsPath, policyFlag)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(summary)
			}
			printImportSummary(output, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&actionsPath, "actions", "", "corporate actions CSV (default: data.corporate_actions_path)")
	cmd.Flags().StringVar(&policyFlag, "policy", "", "apply_all or after_effective_date (default: reconcile.action_policy)")
	return cmd
}

func runImport(cmd *cobra.Command, app *App, st store.DataStore, path, actionsPath, policyName string) (*ImportSummary, error) {
	ctx := cmd.Context()
	batchID := uuid.NewString()
	logger := logging.WithOperation(logging.WithBatch(app.Logger, batchID), "import")

	policy, err := corporate.ParsePolicy(policyName)
	if err != nil {
		return nil, err
	}

	rows, err := b3.LoadExportFile(path)
	if err != nil {
		return nil, err
	}
	parsed := b3.Parse(rows)
	warnings := append([]apperrors.Warning{}, parsed.Warnings...)

	var actions []models.CorporateAction
	if actionsPath != "" {
		if _, statErr := os.Stat(actionsPath); statErr == nil {
			loaded, actionWarns, err := corporate.LoadActionsFile(actionsPath)
			if err != nil {
				return nil, err
			}
			actions = loaded
			warnings = append(warnings, actionWarns...)
		} else {
			logger.Debug().Str("path", actionsPath).Msg("No corporate actions table, skipping adjustment")
		}
	}

	adjusted, adjustWarns := corporate.NewAdjuster(policy).Apply(parsed.Transactions, actions)
	warnings = append(warnings, adjustWarns...)
	logging.LogWarnings(logger, warnings)

	batch := store.ImportBatch{
		ID:         batchID,
		Source:     filepath.Base(path),
		ImportedAt: time.Now(),
		Rows:       len(rows),
		Trades:     b3.ParseResult{Transactions: adjusted}.Trades(),
		Warnings:   len(warnings),
	}
	if err := st.ReplaceActions(ctx, actions); err != nil {
		return nil, err
	}
	if err := st.ReplaceTransactions(ctx, batch, adjusted); err != nil {
		return nil, err
	}
	app.Metrics.RecordWarnings(warnings)
	logging.LogImport(logger, batch.ID, batch.Rows, batch.Trades, batch.Warnings)

	summary := &ImportSummary{
		Batch:        batch,
		Policy:       policy.String(),
		Actions:      len(actions),
		ByAssetType:  make(map[models.AssetType]int),
		ByInvestment: make(map[models.InvestmentType]int),
		Warnings:     warnings,
	}
	for _, tx := range adjusted {
		summary.ByAssetType[tx.AssetType]++
		summary.ByInvestment[tx.InvestmentType]++
	}
	return summary, nil
}

func printImportSummary(output *Output, s *ImportSummary) {
	output.Success("✓ Imported %s", s.Batch.Source)
	output.Box("Import "+s.Batch.ID[:8], []string{
		fmt.Sprintf("Rows:              %d", s.Batch.Rows),
		fmt.Sprintf("Trades:            %d", s.Batch.Trades),
		fmt.Sprintf("Corporate actions: %d (%s)", s.Actions, s.Policy),
		fmt.Sprintf("Warnings:          %d", len(s.Warnings)),
	})

	table := NewTable(output, "Asset type", "Rows")
	for _, at := range models.AllAssetTypes {
		if n := s.ByAssetType[at]; n > 0 {
			table.AddRow(string(at), fmt.Sprint(n))
		}
	}
	table.Render()
	output.Warnings(s.Warnings)
}

func newPositionsCmd(app *App) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Show open positions valued at current quotes",
		Example: `  b3tracker positions
  b3tracker positions --type fii`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.requireStore()
			if err != nil {
				return err
			}
			filter, err := portfolio.ParseFilter(kind)
			if err != nil {
				return err
			}

			txs, err := st.GetTransactions(cmd.Context(), store.TransactionFilter{})
			if err != nil {
				return err
			}
			res := portfolio.NewAggregator(app.Quotes).Aggregate(cmd.Context(), txs, filter)
			app.Metrics.RecordWarnings(res.Warnings)
			logging.LogWarnings(app.Logger, res.Warnings)

			if output.IsJSON() {
				rounded := make([]models.Position, len(res.Positions))
				for i, p := range res.Positions {
					rounded[i] = p.Rounded()
				}
				return output.JSON(map[string]interface{}{
					"positions": rounded,
					"summary":   res.Summary,
					"warnings":  res.Warnings,
				})
			}

			if len(res.Positions) == 0 {
				output.Dim("No open positions")
				return nil
			}
			printPositions(output, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", "", "fii or stocks (default: all)")
	return cmd
}

func printPositions(output *Output, res portfolio.Result) {
	table := NewTable(output, "Ticker", "Type", "Qty", "Avg cost", "Invested", "Price", "Value", "P&L", "P&L %")
	for _, p := range res.Positions {
		table.AddRow(
			p.Ticker,
			string(p.AssetType),
			utils.FormatQuantity(p.NetQuantity),
			utils.FormatBRL(p.AverageCost),
			utils.FormatBRL(p.TotalInvested),
			FormatPrice(p.CurrentPrice, p.PriceMissing),
			utils.FormatBRL(p.MarketValue),
			output.FormatPnL(p.UnrealizedPnL),
			output.FormatRatio(p.PnLRatio()),
		)
	}
	table.Render()
	output.Println()

	s := res.Summary
	output.Box("Portfolio", []string{
		fmt.Sprintf("Positions:    %d", s.Positions),
		fmt.Sprintf("Invested:     %s", utils.FormatBRL(s.TotalInvested)),
		fmt.Sprintf("Market value: %s", utils.FormatBRL(s.TotalMarketValue)),
		fmt.Sprintf("P&L:          %s (%s)", output.FormatPnL(s.TotalPnL), output.FormatRatio(s.PnLRatio)),
	})
	output.Warnings(res.Warnings)
}

func newTransactionsCmd(app *App) *cobra.Command {
	var (
		kind   string
		ticker string
		all    bool
		limit  int
		export string
	)

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List or export imported transactions",
		Example: `  b3tracker transactions --type fii --limit 20
  b3tracker transactions --all --export movimentos.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.requireStore()
			if err != nil {
				return err
			}

			filter := store.TransactionFilter{Ticker: ticker, TradesOnly: !all, Limit: limit}
			if kind != "" {
				it, ok := models.ParseInvestmentType(kind)
				if !ok {
					return apperrors.NewValidationError("type", kind, "unknown investment type")
				}
				filter.InvestmentTypes = []models.InvestmentType{it}
			}

			txs, err := st.GetTransactions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if export != "" {
				f, err := os.Create(export)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := b3.WriteTransactions(f, txs); err != nil {
					return err
				}
				output.Success("✓ Exported %d transactions to %s", len(txs), export)
				return nil
			}

			if output.IsJSON() {
				return output.JSON(txs)
			}
			if len(txs) == 0 {
				output.Dim("No transactions")
				return nil
			}

			table := NewTable(output, "Date", "Ticker", "Movement", "Dir", "Qty", "Price", "Value")
			for _, tx := range txs {
				dir := output.Green(string(tx.Direction))
				if tx.Direction == models.DirectionDebit {
					dir = output.Red(string(tx.Direction))
				}
				table.AddRow(
					FormatDate(tx.Date),
					tx.Ticker,
					TruncateString(tx.MovementLabel, 28),
					dir,
					utils.FormatQuantity(tx.Quantity),
					utils.FormatBRL(tx.UnitPrice),
					utils.FormatBRL(tx.OperationValue),
				)
			}
			table.Render()
			output.Dim("%d transactions", len(txs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", "", "investment type (fii, stocks, other)")
	cmd.Flags().StringVar(&ticker, "ticker", "", "only this ticker")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include non-trade rows (dividends, transfers, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows (0 = no limit)")
	cmd.Flags().StringVar(&export, "export", "", "write the cleaned table to a CSV file")
	return cmd
}
