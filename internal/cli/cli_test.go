package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-tracker/internal/analysis/scoring"
	"b3-tracker/internal/config"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
	"b3-tracker/internal/store"
)

const exportCSV = `Entrada/Saída,Data,Movimentação,Produto,Instituição,Quantidade,Preço unitário,Valor da Operação
Credito,02/01/2024,Compra,HGLG11 - CSHG LOGISTICA FDO INV IMOB - FII,XP,10,"160,00","1.600,00"
Credito,03/01/2024,Compra,ABCD3 - ACME S.A.,XP,100,"10,00","1.000,00"
Credito,15/01/2024,Rendimento,HGLG11 - CSHG LOGISTICA FDO INV IMOB - FII,XP,10,"1,10","11,00"
`

const actionsCSV = `ativo_antigo,ativo_novo,data_vigencia,fator_conversao
ABCD3,WXYZ3,2023-12-01,1:2
`

const hglgChart = `{"chart":{"result":[{"meta":{"symbol":"HGLG11.SA","regularMarketPrice":170.0},
"timestamp":[1704196800,1704283200],
"indicators":{"quote":[{"open":[165.0,168.0],"high":[169.0,171.0],"low":[164.0,167.0],
"close":[168.0,170.0],"volume":[5000,6000]}]}}],"error":null}}`

const hglgPage = `<html><body>
<div class="info"><h3 class="title">Valor atual</h3><strong class="value">R$ 160,25</strong></div>
<div class="info"><h3>P/VP</h3><strong class="value">1,01</strong></div>
</body></html>`

func newProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/chart/HGLG11.SA"):
			fmt.Fprint(w, hglgChart)
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/"):
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
		case r.URL.Path == "/fundos-imobiliarios/hglg11":
			fmt.Fprint(w, hglgPage)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testEnv returns a config pointing at a temp database and the fake
// providers, plus the temp directory.
func testEnv(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	srv := newProviderServer(t)

	cfg := config.Default()
	cfg.Data.DatabasePath = filepath.Join(dir, "data", "b3tracker.db")
	cfg.Data.CorporateActionsPath = filepath.Join(dir, "acoes.csv")
	cfg.Providers.QuoteBaseURL = srv.URL
	cfg.Providers.FundamentalsBaseURL = srv.URL
	cfg.Providers.RequestsPerSecond = 1000
	cfg.Providers.Retries = 1
	cfg.Cache.Backend = config.CacheMemory

	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.csv"), []byte(exportCSV), 0o644))
	require.NoError(t, os.WriteFile(cfg.Data.CorporateActionsPath, []byte(actionsCSV), 0o644))
	return cfg, dir
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(cfg, zerolog.Nop())
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func runJSON[T any](t *testing.T, cfg *config.Config, args ...string) T {
	t.Helper()
	out, err := run(t, cfg, append(args, "--json")...)
	require.NoError(t, err, out)
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "b3tracker v"+Version)
}

func TestImport(t *testing.T) {
	cfg, dir := testEnv(t)

	summary := runJSON[ImportSummary](t, cfg, "import", filepath.Join(dir, "export.csv"))
	assert.Equal(t, 3, summary.Batch.Rows)
	assert.Equal(t, 2, summary.Batch.Trades)
	assert.Equal(t, 1, summary.Actions)
	assert.Equal(t, "apply_all", summary.Policy)
	assert.Equal(t, 2, summary.ByInvestment[models.InvestmentFII])
	assert.NotEmpty(t, summary.Batch.ID)

	txs := runJSON[[]models.Transaction](t, cfg, "transactions")
	require.Len(t, txs, 2)
	assert.Equal(t, "WXYZ3", txs[1].Ticker, "ticker change applied")
	assert.Equal(t, 200.0, txs[1].Quantity)

	all := runJSON[[]models.Transaction](t, cfg, "transactions", "--all", "--type", "fii")
	assert.Len(t, all, 2)

	status := runJSON[map[string]json.RawMessage](t, cfg, "status")
	var batch store.ImportBatch
	require.NoError(t, json.Unmarshal(status["last_import"], &batch))
	assert.Equal(t, summary.Batch.ID, batch.ID)
}

func TestImport_AfterEffectiveDatePolicy(t *testing.T) {
	cfg, dir := testEnv(t)
	actions := "ativo_antigo,ativo_novo,data_vigencia,fator_conversao\nABCD3,WXYZ3,2024-06-01,1:2\n"
	require.NoError(t, os.WriteFile(cfg.Data.CorporateActionsPath, []byte(actions), 0o644))

	summary := runJSON[ImportSummary](t, cfg, "import", filepath.Join(dir, "export.csv"), "--policy", "after_effective_date")
	assert.Equal(t, "after_effective_date", summary.Policy)

	txs := runJSON[[]models.Transaction](t, cfg, "transactions", "--ticker", "ABCD3")
	require.Len(t, txs, 1, "rows before the effective date keep the old ticker")
	assert.Equal(t, 100.0, txs[0].Quantity)

	_, err := run(t, cfg, "import", filepath.Join(dir, "export.csv"), "--policy", "sometimes")
	assert.Error(t, err)
}

func TestImport_MissingFile(t *testing.T) {
	cfg, dir := testEnv(t)
	_, err := run(t, cfg, "import", filepath.Join(dir, "nope.csv"))
	assert.Error(t, err)
}

func TestPositions(t *testing.T) {
	cfg, dir := testEnv(t)
	_, err := run(t, cfg, "import", filepath.Join(dir, "export.csv"))
	require.NoError(t, err)

	type positionsBody struct {
		Positions []models.Position       `json:"positions"`
		Summary   models.PortfolioSummary `json:"summary"`
		Warnings  []apperrors.Warning     `json:"warnings"`
	}

	body := runJSON[positionsBody](t, cfg, "positions")
	require.Len(t, body.Positions, 2)
	assert.Equal(t, "HGLG11", body.Positions[0].Ticker)
	assert.Equal(t, 1700.0, body.Positions[0].MarketValue)
	assert.Equal(t, 100.0, body.Positions[0].UnrealizedPnL)
	assert.True(t, body.Positions[1].PriceMissing, "WXYZ3 has no quote")
	assert.Len(t, body.Warnings, 1)

	body = runJSON[positionsBody](t, cfg, "positions", "--type", "fii")
	require.Len(t, body.Positions, 1)
	assert.Equal(t, 1600.0, body.Summary.TotalInvested)

	out, err := run(t, cfg, "positions")
	require.NoError(t, err)
	assert.Contains(t, out, "HGLG11")
	assert.Contains(t, out, "R$1.700,00")

	_, err = run(t, cfg, "positions", "--type", "crypto")
	assert.Error(t, err)
}

func TestTransactionsExport(t *testing.T) {
	cfg, dir := testEnv(t)
	_, err := run(t, cfg, "import", filepath.Join(dir, "export.csv"))
	require.NoError(t, err)

	target := filepath.Join(dir, "clean.csv")
	_, err = run(t, cfg, "transactions", "--all", "--export", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 4, "header plus three rows")
	assert.Contains(t, lines[0], "ticker")
}

func TestIndicators(t *testing.T) {
	cfg, _ := testEnv(t)

	type indicatorsBody struct {
		Ticker  string                   `json:"ticker"`
		Period  string                   `json:"period"`
		Bars    int                      `json:"bars"`
		Signals map[string]models.Signal `json:"signals"`
	}
	body := runJSON[indicatorsBody](t, cfg, "indicators", "hglg11", "-i", "rsi", "-p", "3mo")
	assert.Equal(t, "HGLG11", body.Ticker)
	assert.Equal(t, "3mo", body.Period)
	assert.Equal(t, 2, body.Bars)
	assert.Equal(t, models.SignalNeutral, body.Signals["rsi"], "too few bars for a signal")

	body = runJSON[indicatorsBody](t, cfg, "indicators", "NONE3")
	assert.Equal(t, 0, body.Bars)

	_, err := run(t, cfg, "indicators", "HGLG11", "-i", "ichimoku")
	assert.Error(t, err)
}

func TestFIIScore(t *testing.T) {
	cfg, _ := testEnv(t)

	report := runJSON[scoring.Report](t, cfg, "fii", "score", "hglg11")
	assert.Equal(t, "HGLG11", report.Fund.Ticker)
	assert.Equal(t, 160.25, report.Fund.Price)
	assert.NotEmpty(t, report.Warnings, "missing fields are defaulted")

	_, err := run(t, cfg, "fii", "score", "NADA11")
	assert.Error(t, err)

	_, err = run(t, cfg, "fii", "rank", "abc")
	assert.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	cfg, _ := testEnv(t)
	out, err := run(t, cfg, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Indicators")
	assert.Contains(t, out, cfg.Data.DatabasePath)

	out, err = run(t, cfg, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}
