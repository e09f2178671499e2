// Package config provides configuration management for the tracker.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "b3-tracker/internal/errors"

	"github.com/spf13/viper"
)

// Action policies for corporate-action reconciliation.
const (
	PolicyApplyAll           = "apply_all"
	PolicyAfterEffectiveDate = "after_effective_date"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Score weight keys accepted under [scoring.weights].
var ScoreWeightKeys = []string{"dy", "dy_cagr", "pvp", "vacancy", "volatility", "liquidity"}

// Config holds all application configuration.
type Config struct {
	Data        DataConfig        `mapstructure:"data"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Indicators  IndicatorConfig   `mapstructure:"indicators"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Providers   ProviderConfig    `mapstructure:"providers"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	API         APIConfig         `mapstructure:"api"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DataConfig holds file locations.
type DataConfig struct {
	DatabasePath         string `mapstructure:"database_path"`
	CorporateActionsPath string `mapstructure:"corporate_actions_path"`
}

// ReconcileConfig controls corporate-action adjustment.
type ReconcileConfig struct {
	ActionPolicy string `mapstructure:"action_policy"` // apply_all, after_effective_date
}

// IndicatorConfig holds indicator periods and thresholds.
type IndicatorConfig struct {
	SMAShort        int     `mapstructure:"sma_short"`
	SMALong         int     `mapstructure:"sma_long"`
	RSIPeriod       int     `mapstructure:"rsi_period"`
	RSIOversold     float64 `mapstructure:"rsi_oversold"`
	RSIOverbought   float64 `mapstructure:"rsi_overbought"`
	BollingerPeriod int     `mapstructure:"bollinger_period"`
	BollingerK      float64 `mapstructure:"bollinger_k"`
	MACDFast        int     `mapstructure:"macd_fast"`
	MACDSlow        int     `mapstructure:"macd_slow"`
	MACDSignal      int     `mapstructure:"macd_signal"`
	DefaultPeriod   string  `mapstructure:"default_period"`
}

// ScoringConfig holds FII quality and decision weights.
type ScoringConfig struct {
	Weights       map[string]float64 `mapstructure:"weights"`
	DecisionDY    float64            `mapstructure:"decision_dy"`
	DecisionPVP   float64            `mapstructure:"decision_pvp"`
	DecisionScore float64            `mapstructure:"decision_score"`
	TopN          int                `mapstructure:"top_n"`
}

// ProviderConfig holds external data source settings.
type ProviderConfig struct {
	QuoteBaseURL        string        `mapstructure:"quote_base_url"`
	FundamentalsBaseURL string        `mapstructure:"fundamentals_base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second"`
	Retries             int           `mapstructure:"retries"`
	BreakerFailures     int           `mapstructure:"breaker_failures"`
	BreakerCooldown     time.Duration `mapstructure:"breaker_cooldown"`
	MarketSuffix        string        `mapstructure:"market_suffix"`
	UserAgent           string        `mapstructure:"user_agent"`
}

// CacheConfig selects and tunes the lookup cache.
type CacheConfig struct {
	Backend         string        `mapstructure:"backend"`
	QuoteTTL        time.Duration `mapstructure:"quote_ttl"`
	HistoryTTL      time.Duration `mapstructure:"history_ttl"`
	FundamentalsTTL time.Duration `mapstructure:"fundamentals_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
}

// ConcurrencyConfig bounds provider fan-out.
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/b3-tracker"
	}
	return filepath.Join(home, ".config", "b3-tracker")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// A missing config.toml is created from the template and then read.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	expandPaths(cfg, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	expandPaths(cfg, DefaultConfigDir())
	return cfg
}

// ConfigPath returns the config file location for a directory.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	// B3TRACKER_CACHE_BACKEND overrides cache.backend, and so on.
	v.SetEnvPrefix("B3TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.database_path", "tracker.db")
	v.SetDefault("data.corporate_actions_path", "")

	v.SetDefault("reconcile.action_policy", PolicyApplyAll)

	v.SetDefault("indicators.sma_short", 20)
	v.SetDefault("indicators.sma_long", 50)
	v.SetDefault("indicators.rsi_period", 14)
	v.SetDefault("indicators.rsi_oversold", 30.0)
	v.SetDefault("indicators.rsi_overbought", 70.0)
	v.SetDefault("indicators.bollinger_period", 20)
	v.SetDefault("indicators.bollinger_k", 2.0)
	v.SetDefault("indicators.macd_fast", 12)
	v.SetDefault("indicators.macd_slow", 26)
	v.SetDefault("indicators.macd_signal", 9)
	v.SetDefault("indicators.default_period", "1y")

	v.SetDefault("scoring.weights", map[string]float64{
		"dy":         0.25,
		"dy_cagr":    0.2,
		"pvp":        0.15,
		"vacancy":    0.15,
		"volatility": 0.1,
		"liquidity":  0.1,
	})
	v.SetDefault("scoring.decision_dy", 0.5)
	v.SetDefault("scoring.decision_pvp", 0.3)
	v.SetDefault("scoring.decision_score", 1.0)
	v.SetDefault("scoring.top_n", 5)

	v.SetDefault("providers.quote_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.fundamentals_base_url", "https://statusinvest.com.br")
	v.SetDefault("providers.timeout", 15*time.Second)
	v.SetDefault("providers.requests_per_second", 2.0)
	v.SetDefault("providers.retries", 2)
	v.SetDefault("providers.breaker_failures", 5)
	v.SetDefault("providers.breaker_cooldown", 30*time.Second)
	v.SetDefault("providers.market_suffix", ".SA")
	v.SetDefault("providers.user_agent", "Mozilla/5.0 (X11; Linux x86_64) b3-tracker")

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.quote_ttl", 15*time.Minute)
	v.SetDefault("cache.history_ttl", time.Hour)
	v.SetDefault("cache.fundamentals_ttl", 6*time.Hour)
	v.SetDefault("cache.cleanup_interval", 30*time.Minute)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("concurrency.workers", 4)
	v.SetDefault("api.listen", ":8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", "logs/b3tracker.log")
}

// expandPaths resolves relative data and log paths against the config dir.
func expandPaths(cfg *Config, configDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(configDir, p)
	}
	cfg.Data.DatabasePath = resolve(cfg.Data.DatabasePath)
	cfg.Data.CorporateActionsPath = resolve(cfg.Data.CorporateActionsPath)
	cfg.Logging.FilePath = resolve(cfg.Logging.FilePath)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Reconcile.ActionPolicy {
	case PolicyApplyAll, PolicyAfterEffectiveDate:
	default:
		return apperrors.NewValidationError("reconcile.action_policy", c.Reconcile.ActionPolicy,
			"must be 'apply_all' or 'after_effective_date'")
	}

	ind := c.Indicators
	for name, p := range map[string]int{
		"sma_short":        ind.SMAShort,
		"sma_long":         ind.SMALong,
		"rsi_period":       ind.RSIPeriod,
		"bollinger_period": ind.BollingerPeriod,
		"macd_fast":        ind.MACDFast,
		"macd_slow":        ind.MACDSlow,
		"macd_signal":      ind.MACDSignal,
	} {
		if p < 1 {
			return apperrors.NewValidationError("indicators."+name, p, "must be at least 1")
		}
	}
	if ind.SMAShort >= ind.SMALong {
		return apperrors.NewValidationError("indicators.sma_short", ind.SMAShort, "must be lower than sma_long")
	}
	if ind.MACDFast >= ind.MACDSlow {
		return apperrors.NewValidationError("indicators.macd_fast", ind.MACDFast, "must be lower than macd_slow")
	}
	if ind.RSIOversold < 0 || ind.RSIOverbought > 100 || ind.RSIOversold >= ind.RSIOverbought {
		return apperrors.NewValidationError("indicators.rsi_oversold", ind.RSIOversold,
			"thresholds must satisfy 0 <= oversold < overbought <= 100")
	}
	if ind.BollingerK <= 0 {
		return apperrors.NewValidationError("indicators.bollinger_k", ind.BollingerK, "must be positive")
	}

	if err := validateWeights(c.Scoring.Weights); err != nil {
		return err
	}
	if c.Scoring.DecisionDY < 0 || c.Scoring.DecisionPVP < 0 || c.Scoring.DecisionScore < 0 {
		return apperrors.NewValidationError("scoring.decision_*", nil, "decision weights must be non-negative")
	}

	if c.Providers.Timeout <= 0 {
		return apperrors.NewValidationError("providers.timeout", c.Providers.Timeout, "must be positive")
	}
	if c.Providers.RequestsPerSecond <= 0 {
		return apperrors.NewValidationError("providers.requests_per_second", c.Providers.RequestsPerSecond, "must be positive")
	}
	if c.Providers.Retries < 0 {
		return apperrors.NewValidationError("providers.retries", c.Providers.Retries, "must be non-negative")
	}
	if c.Providers.BreakerFailures < 0 {
		return apperrors.NewValidationError("providers.breaker_failures", c.Providers.BreakerFailures, "must be non-negative (0 disables)")
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return apperrors.NewValidationError("cache.redis_addr", "", "required for redis backend")
		}
	default:
		return apperrors.NewValidationError("cache.backend", c.Cache.Backend, "must be 'memory' or 'redis'")
	}

	if c.Concurrency.Workers < 1 {
		return apperrors.NewValidationError("concurrency.workers", c.Concurrency.Workers, "must be at least 1")
	}

	return nil
}

func validateWeights(weights map[string]float64) error {
	allowed := make(map[string]bool, len(ScoreWeightKeys))
	for _, k := range ScoreWeightKeys {
		allowed[k] = true
	}

	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !allowed[k] {
			return apperrors.NewValidationError("scoring.weights."+k, weights[k],
				"unknown weight key (allowed: "+strings.Join(ScoreWeightKeys, ", ")+")")
		}
		if weights[k] < 0 {
			return apperrors.NewValidationError("scoring.weights."+k, weights[k], "must be non-negative")
		}
	}
	return nil
}

// UsesEffectiveDate returns true if corporate actions are gated by date.
func (c *Config) UsesEffectiveDate() bool {
	return c.Reconcile.ActionPolicy == PolicyAfterEffectiveDate
}
