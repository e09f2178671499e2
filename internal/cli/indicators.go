package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"b3-tracker/internal/analysis/indicators"
	"b3-tracker/internal/logging"
	"b3-tracker/internal/models"
	"b3-tracker/internal/quotes"
)

func addIndicatorCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newIndicatorsCmd(app))
}

func newIndicatorsCmd(app *App) *cobra.Command {
	var (
		period string
		names  string
		rows   int
	)

	cmd := &cobra.Command{
		Use:   "indicators <ticker>",
		Short: "Technical indicators and signals for a ticker",
		Long: `Fetch daily history for the lookback window and compute SMA crossover,
RSI, Bollinger Bands and MACD. Signals are read from the last bar.`,
		Example: `  b3tracker indicators PETR4
  b3tracker indicators HGLG11 --period 6mo --indicators rsi,bollinger`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ticker := models.NormalizeTicker(args[0])
			if period == "" {
				period = app.Config.Indicators.DefaultPeriod
			}
			logger := logging.WithOperation(logging.WithTicker(app.Logger, ticker), "indicators")

			candles, err := app.Quotes.History(cmd.Context(), ticker, period)
			if err != nil {
				return err
			}
			res, err := app.Engine.Analyze(cmd.Context(), candles, indicators.ParseNames(names))
			if err != nil {
				return err
			}
			logger.Debug().Int("bars", len(candles)).Str("period", period).Msg("Indicators computed")

			tail := res.Series.Tail(rows)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":  ticker,
					"period":  period,
					"bars":    res.Series.Len(),
					"signals": res.Signals,
					"rows":    tail,
				})
			}

			if res.Series.Len() == 0 {
				output.Warning("No price history for %s", ticker)
				return nil
			}

			output.Bold("%s  %s", ticker, output.DimText(period+", "+FormatDate(candles[len(candles)-1].Timestamp)))
			output.Println()
			for _, name := range sortedSignals(res.Signals) {
				output.Printf("  %-10s %s\n", name, output.Signal(res.Signals[name]))
			}
			output.Println()

			columns := res.Series.Columns()
			table := NewTable(output, append([]string{"Date", "Close", "Volume"}, columns...)...)
			for _, r := range tail {
				cells := []string{FormatDate(r.Candle.Timestamp), FormatValue(r.Candle.Close), FormatVolume(r.Candle.Volume)}
				for _, c := range columns {
					if v, ok := r.Values[c]; ok {
						cells = append(cells, FormatValue(v))
					} else {
						cells = append(cells, "-")
					}
				}
				table.AddRow(cells...)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&period, "period", "p", "", "lookback window: "+strings.Join(quotes.ValidPeriods, ", "))
	cmd.Flags().StringVarP(&names, "indicators", "i", "", "comma separated subset of sma, rsi, bollinger, macd")
	cmd.Flags().IntVarP(&rows, "rows", "n", 10, "number of trailing bars to show")
	return cmd
}

// sortedSignals returns signal names in the engine's display order.
func sortedSignals(signals map[string]models.Signal) []string {
	order := []string{indicators.NameSMA, indicators.NameRSI, indicators.NameBollinger, indicators.NameMACD}
	out := make([]string, 0, len(signals))
	for _, n := range order {
		if _, ok := signals[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
