package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# B3 Tracker Configuration

[data]
# SQLite database (relative paths resolve against this directory)
database_path = "tracker.db"
# Corporate-action reference table (ativo_antigo,ativo_novo,data_vigencia,fator_conversao)
corporate_actions_path = ""

[reconcile]
# "apply_all" rewrites every historical row of the old ticker.
# "after_effective_date" only rewrites rows dated on or after data_vigencia.
action_policy = "apply_all"

[indicators]
sma_short = 20
sma_long = 50
rsi_period = 14
rsi_oversold = 30.0
rsi_overbought = 70.0
bollinger_period = 20
bollinger_k = 2.0
macd_fast = 12
macd_slow = 26
macd_signal = 9
# Lookback for price history: 1mo, 3mo, 6mo, 1y, 2y, 5y, max
default_period = "1y"

[scoring]
# Monitoring panel: points = dy*decision_dy + (1/pvp)*decision_pvp + score*decision_score
decision_dy = 0.5
decision_pvp = 0.3
decision_score = 1.0
# Funds shown per segment in rankings
top_n = 5

[scoring.weights]
# Quality score weights. Need not sum to 1; the score is clamped to 0-10.
dy = 0.25
dy_cagr = 0.2
pvp = 0.15
vacancy = 0.15
volatility = 0.1
liquidity = 0.1

[providers]
quote_base_url = "https://query1.finance.yahoo.com"
fundamentals_base_url = "https://statusinvest.com.br"
timeout = "15s"
requests_per_second = 2.0
retries = 2
breaker_failures = 5      # consecutive failures before a provider is skipped, 0 disables
breaker_cooldown = "30s"
market_suffix = ".SA"

[cache]
# Backend: "memory" or "redis"
backend = "memory"
quote_ttl = "15m"
history_ttl = "1h"
fundamentals_ttl = "6h"
cleanup_interval = "30m"
redis_addr = "localhost:6379"
redis_password = ""
redis_db = 0

[concurrency]
# Parallel provider lookups for rankings and the monitoring panel
workers = 4

[api]
listen = ":8080"

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
file_path = "logs/b3tracker.log"
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
