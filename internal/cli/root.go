// Package cli provides the command-line interface of the tracker.
package cli

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"b3-tracker/internal/analysis/indicators"
	"b3-tracker/internal/analysis/scoring"
	"b3-tracker/internal/cache"
	"b3-tracker/internal/config"
	"b3-tracker/internal/fundamentals"
	"b3-tracker/internal/logging"
	"b3-tracker/internal/metrics"
	"b3-tracker/internal/models"
	"b3-tracker/internal/quotes"
	"b3-tracker/internal/resilience"
	"b3-tracker/internal/store"
	"b3-tracker/pkg/utils"
)

var (
	errStoreUnavailable = errors.New("local database unavailable, check data.database_path")

	nowFunc = time.Now
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Cache    cache.Cache
	Store    store.DataStore
	Breakers *resilience.Registry
	Quotes   *quotes.Service
	Funds    *scoring.Analyzer
	Engine   *indicators.Engine
}

// NewApp wires providers, caches and the store from cfg. A store or cache
// that fails to open is logged and left nil or replaced by the in-memory
// cache; commands that need the store report it themselves.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Warn().Err(err).Str("backend", cfg.Cache.Backend).Msg("Failed to open cache, using memory")
		c = cache.NewMemory(cfg.Cache.CleanupInterval)
	}
	app.Cache = c

	if err := os.MkdirAll(filepath.Dir(cfg.Data.DatabasePath), 0o755); err != nil {
		logger.Warn().Err(err).Msg("Failed to create data directory")
	}
	dataStore, err := store.NewSQLiteStore(cfg.Data.DatabasePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Data.DatabasePath).Msg("SQLite store initialized")
	}

	p := cfg.Providers
	app.Breakers = resilience.NewRegistry(resilience.Config{Failures: p.BreakerFailures, Cooldown: p.BreakerCooldown})
	quoteOpts := []quotes.ClientOption{
		quotes.WithTimeout(p.Timeout),
		quotes.WithRateLimit(p.RequestsPerSecond),
		quotes.WithRetries(p.Retries),
		quotes.WithLogger(logger),
		quotes.WithMetrics(app.Metrics),
		quotes.WithBreaker(app.Breakers.Get(quotes.ProviderName)),
	}
	if p.QuoteBaseURL != "" {
		quoteOpts = append(quoteOpts, quotes.WithBaseURL(p.QuoteBaseURL))
	}
	if p.UserAgent != "" {
		quoteOpts = append(quoteOpts, quotes.WithUserAgent(p.UserAgent))
	}
	serviceOpts := []quotes.ServiceOption{
		quotes.WithCache(c, cfg.Cache.QuoteTTL, cfg.Cache.HistoryTTL),
		quotes.WithServiceMetrics(app.Metrics),
		quotes.WithServiceLogger(logger),
	}
	if app.Store != nil {
		serviceOpts = append(serviceOpts, quotes.WithStore(app.Store))
	}
	app.Quotes = quotes.NewService(quotes.NewClient(quoteOpts...), serviceOpts...)

	fundOpts := []fundamentals.ClientOption{
		fundamentals.WithTimeout(p.Timeout),
		fundamentals.WithRateLimit(p.RequestsPerSecond),
		fundamentals.WithRetries(p.Retries),
		fundamentals.WithLogger(logger),
		fundamentals.WithMetrics(app.Metrics),
		fundamentals.WithBreaker(app.Breakers.Get(fundamentals.ProviderName)),
	}
	if p.FundamentalsBaseURL != "" {
		fundOpts = append(fundOpts, fundamentals.WithBaseURL(p.FundamentalsBaseURL))
	}
	if p.UserAgent != "" {
		fundOpts = append(fundOpts, fundamentals.WithUserAgent(p.UserAgent))
	}
	source := fundamentals.NewCached(fundamentals.NewClient(fundOpts...), c, cfg.Cache.FundamentalsTTL, app.Metrics, logger)
	app.Funds = scoring.NewAnalyzer(source,
		scoring.WithWeights(scoring.WeightsFromConfig(cfg.Scoring)),
		scoring.WithDecisionWeights(scoring.DecisionWeightsFromConfig(cfg.Scoring)),
		scoring.WithWorkers(cfg.Concurrency.Workers),
		scoring.WithLogger(logger),
	)

	app.Engine = indicators.NewDefaultEngine(cfg.Concurrency.Workers, indicators.ParamsFromConfig(cfg.Indicators))
	return app
}

// Close releases the store and cache.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
}

// requireStore returns the store or a helpful error.
func (a *App) requireStore() (store.DataStore, error) {
	if a.Store == nil {
		return nil, errStoreUnavailable
	}
	return a.Store, nil
}

// NewRootCmd creates the root command for the CLI. When cfg is nil the
// configuration is loaded from --config (or the default directory) before
// any subcommand runs.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{Config: cfg, Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "b3tracker",
		Short: "B3 portfolio tracker - positions, indicators and FII analysis",
		Long: `b3tracker imports the B3 investor-area movement export, reconciles
ticker changes, values open positions at current quotes and analyses
real estate funds (FIIs) from public fundamentals.

Use 'b3tracker <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.Logger = logging.NewLoggerWithConfig(logging.FromConfig(loaded.Logging))
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			if app.Config.Providers.MarketSuffix != "" {
				models.MarketSuffix = app.Config.Providers.MarketSuffix
			}
			*app = *NewApp(app.Config, app.Logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/b3-tracker)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addPortfolioCommands(rootCmd, app)
	addIndicatorCommands(rootCmd, app)
	addFIICommands(rootCmd, app)
	addServeCommand(rootCmd, app)
	addHelpCommands(rootCmd)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs neither config nor store
		PersistentPreRun:  func(cmd *cobra.Command, args []string) {},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("b3tracker v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.ConfigPath(dir)})
			} else {
				output.Println(config.ConfigPath(dir))
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Data")
	output.Printf("  Database:          %s\n", cfg.Data.DatabasePath)
	output.Printf("  Corporate actions: %s\n", cfg.Data.CorporateActionsPath)
	output.Printf("  Action policy:     %s\n", cfg.Reconcile.ActionPolicy)
	output.Println()

	ind := cfg.Indicators
	output.Bold("Indicators")
	output.Printf("  SMA:       %d / %d\n", ind.SMAShort, ind.SMALong)
	output.Printf("  RSI:       %d (%.0f / %.0f)\n", ind.RSIPeriod, ind.RSIOversold, ind.RSIOverbought)
	output.Printf("  Bollinger: %d x %.1f\n", ind.BollingerPeriod, ind.BollingerK)
	output.Printf("  MACD:      %d / %d / %d\n", ind.MACDFast, ind.MACDSlow, ind.MACDSignal)
	output.Printf("  Period:    %s\n", ind.DefaultPeriod)
	output.Println()

	output.Bold("Scoring")
	for _, k := range config.ScoreWeightKeys {
		output.Printf("  %-11s %.2f\n", k+":", cfg.Scoring.Weights[k])
	}
	output.Printf("  Decision:   dy %.1f, pvp %.1f, score %.1f\n",
		cfg.Scoring.DecisionDY, cfg.Scoring.DecisionPVP, cfg.Scoring.DecisionScore)
	output.Printf("  Top N:      %d\n", cfg.Scoring.TopN)
	output.Println()

	output.Bold("Providers")
	output.Printf("  Quotes:       %s\n", cfg.Providers.QuoteBaseURL)
	output.Printf("  Fundamentals: %s\n", cfg.Providers.FundamentalsBaseURL)
	output.Printf("  Timeout:      %s, %.1f req/s, %d retries\n",
		cfg.Providers.Timeout, cfg.Providers.RequestsPerSecond, cfg.Providers.Retries)
	output.Printf("  Breaker:      %d failures, %s cooldown\n",
		cfg.Providers.BreakerFailures, cfg.Providers.BreakerCooldown)
	output.Println()

	output.Bold("Cache")
	output.Printf("  Backend: %s\n", cfg.Cache.Backend)
	output.Printf("  TTLs:    quote %s, history %s, fundamentals %s\n",
		cfg.Cache.QuoteTTL, cfg.Cache.HistoryTTL, cfg.Cache.FundamentalsTTL)
	output.Println()

	output.Bold("API")
	output.Printf("  Listen:  %s\n", cfg.API.Listen)
	output.Printf("  Workers: %d\n", cfg.Concurrency.Workers)
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show last import and data freshness",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.requireStore()
			if err != nil {
				return err
			}

			tracker := store.NewSyncTracker(st, nil)
			statuses := tracker.AllStatus()
			batch, batchErr := st.LastImport(cmd.Context())

			if output.IsJSON() {
				result := map[string]interface{}{"sync": statuses}
				if batchErr == nil {
					result["last_import"] = batch
				}
				return output.JSON(result)
			}

			output.Bold("Last import")
			if batchErr != nil {
				output.Dim("  none yet, run 'b3tracker import <export.csv>'")
			} else {
				output.Printf("  %s  %s\n", batch.ID, output.DimText(batch.Source))
				output.Printf("  %s: %d rows, %d trades, %d warnings\n",
					FormatDateTime(batch.ImportedAt), batch.Rows, batch.Trades, batch.Warnings)
			}
			output.Println()

			output.Bold("Data freshness")
			for _, s := range statuses {
				line := "  " + store.FormatSyncStatus(s)
				if s.IsStale {
					output.Printf("%s\n", output.Yellow(line))
				} else {
					output.Printf("%s\n", output.Green(line))
				}
			}

			output.Println()
			open := "closed"
			if utils.IsMarketOpen(nowFunc()) {
				open = "open"
			}
			output.Dim("B3 market is %s", open)
			return nil
		},
	}
}
