package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"b3-tracker/internal/api"
)

func addServeCommand(rootCmd *cobra.Command, app *App) {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only JSON API",
		Long: `Expose positions, transactions, indicators and FII analysis over HTTP
for the dashboard, plus Prometheus metrics at /metrics.`,
		Example: "  b3tracker serve --listen :8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.requireStore()
			if err != nil {
				return err
			}
			if listen == "" {
				listen = app.Config.API.Listen
			}

			handler := api.NewHandler(api.Deps{
				Transactions:  st,
				Prices:        app.Quotes,
				History:       app.Quotes,
				Engine:        app.Engine,
				Funds:         app.Funds,
				Breakers:      app.Breakers,
				Metrics:       app.Metrics,
				Logger:        app.Logger,
				DefaultPeriod: app.Config.Indicators.DefaultPeriod,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !output.IsJSON() {
				output.Info("Listening on %s (Ctrl+C to stop)", listen)
			}
			return api.Serve(ctx, listen, handler)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: api.listen)")
	rootCmd.AddCommand(cmd)
}
