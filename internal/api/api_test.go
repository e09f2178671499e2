package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-tracker/internal/analysis/scoring"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/metrics"
	"b3-tracker/internal/models"
	"b3-tracker/internal/portfolio"
	"b3-tracker/internal/resilience"
	"b3-tracker/internal/store"
)

type fakeTransactions struct {
	txs     []models.Transaction
	filters []store.TransactionFilter
}

func (f *fakeTransactions) GetTransactions(_ context.Context, filter store.TransactionFilter) ([]models.Transaction, error) {
	f.filters = append(f.filters, filter)
	out := []models.Transaction{}
	for _, tx := range f.txs {
		if filter.TradesOnly && !tx.IsTrade {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f *fakeTransactions) LastImport(context.Context) (*store.ImportBatch, error) {
	if len(f.txs) == 0 {
		return nil, apperrors.NewDataError("import", "", "no transactions imported", apperrors.ErrNoData)
	}
	return &store.ImportBatch{ID: "b1", Rows: len(f.txs)}, nil
}

type fakeHistory struct{}

func (fakeHistory) History(_ context.Context, ticker, _ string) ([]models.Candle, error) {
	if ticker == "NONE3" {
		return []models.Candle{}, nil
	}
	candles := make([]models.Candle, 60)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		p := 10 + float64(i%7)
		candles[i] = models.Candle{Timestamp: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
	}
	return candles, nil
}

type fakeFunds struct{}

func (fakeFunds) Report(_ context.Context, ticker string) (*scoring.Report, error) {
	if ticker == "NONE11" {
		return nil, apperrors.NewLookupError("statusinvest", ticker, apperrors.ErrTickerNotFound)
	}
	fund := scoring.Score(models.FIIMetrics{Ticker: ticker, Price: 100, DividendYield: 10, PVP: 1}, scoring.DefaultWeights())
	return &scoring.Report{Fund: fund, Analysis: scoring.Analysis(fund)}, nil
}

func (fakeFunds) RankSegment(_ context.Context, id int) (*scoring.Ranking, error) {
	funds := []models.ScoredFII{
		scoring.Score(models.FIIMetrics{Ticker: "AAAA11", Price: 90, DividendYield: 11, PVP: 0.9}, scoring.DefaultWeights()),
		scoring.Score(models.FIIMetrics{Ticker: "BBBB11", Price: 110, DividendYield: 8, PVP: 1.1}, scoring.DefaultWeights()),
	}
	return &scoring.Ranking{SegmentID: id, Rows: scoring.Rank(funds)}, nil
}

func newTestRouter(t *testing.T, m *metrics.Metrics) (http.Handler, *fakeTransactions) {
	t.Helper()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	txs := &fakeTransactions{txs: []models.Transaction{
		{Date: day, Ticker: "HGLG11", Direction: models.DirectionCredit, Quantity: 10, UnitPrice: 150, OperationValue: 1500,
			MovementType: models.MovementPurchase, AssetType: models.AssetFII, InvestmentType: models.InvestmentFII, IsTrade: true},
		{Date: day, Ticker: "PETR4", Direction: models.DirectionCredit, Quantity: 100, UnitPrice: 30, OperationValue: 3000,
			MovementType: models.MovementPurchase, AssetType: models.AssetStockPN, InvestmentType: models.InvestmentStocks, IsTrade: true},
		{Date: day, Ticker: "HGLG11", Direction: models.DirectionCredit, OperationValue: 11,
			MovementType: models.MovementOther, AssetType: models.AssetFII, InvestmentType: models.InvestmentFII},
	}}
	prices := portfolio.PriceLookupFunc(func(_ context.Context, symbol string) (float64, error) {
		if symbol == "HGLG11.SA" {
			return 160, nil
		}
		return 0, apperrors.NewLookupError("yahoo", symbol, apperrors.ErrProviderUnavailable)
	})

	h := NewHandler(Deps{
		Transactions: txs,
		Prices:       prices,
		History:      fakeHistory{},
		Funds:        fakeFunds{},
		Metrics:      m,
		Logger:       zerolog.Nop(),
	})
	return SetupRoutes(h), txs
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := get(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "healthy", services["database"])
	assert.Equal(t, "configured", services["fundamentals"])
}

func TestHealthCheck_OpenBreaker(t *testing.T) {
	breakers := resilience.NewRegistry(resilience.Config{Failures: 1, Cooldown: time.Hour})
	_ = breakers.Get("yahoo").Do(context.Background(), func() error { return apperrors.ErrProviderUnavailable })
	breakers.Get("statusinvest")

	h := NewHandler(Deps{Transactions: &fakeTransactions{}, Breakers: breakers, Logger: zerolog.Nop()})
	rec := get(t, SetupRoutes(h), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", body["status"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "circuit open", services["yahoo"])
	assert.Equal(t, "healthy (no import yet)", services["database"])
	assert.Len(t, body["breakers"], 2)
}

func TestGetPositions(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := get(t, router, "/api/v1/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[PositionsResponse](t, rec)
	require.Len(t, body.Positions, 2)
	assert.Len(t, body.Warnings, 1, "PETR4 price lookup fails")

	rec = get(t, router, "/api/v1/positions?type=fii")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[PositionsResponse](t, rec)
	require.Len(t, body.Positions, 1)
	assert.Equal(t, "HGLG11", body.Positions[0].Ticker)
	assert.Equal(t, 1600.0, body.Positions[0].MarketValue)

	rec = get(t, router, "/api/v1/positions?type=crypto")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTransactions(t *testing.T) {
	router, txs := newTestRouter(t, nil)

	rec := get(t, router, "/api/v1/transactions?type=fii&trades=true&limit=5&ticker=hglg11")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[[]models.Transaction](t, rec)
	assert.Len(t, body, 2)

	last := txs.filters[len(txs.filters)-1]
	assert.True(t, last.TradesOnly)
	assert.Equal(t, 5, last.Limit)
	assert.Equal(t, "hglg11", last.Ticker)
	assert.Equal(t, []models.InvestmentType{models.InvestmentFII}, last.InvestmentTypes)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/transactions?trades=maybe").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/transactions?limit=-1").Code)
}

func TestGetIndicators(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := get(t, router, "/api/v1/indicators/petr4?period=6mo&indicators=rsi,bollinger")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[IndicatorsResponse](t, rec)
	assert.Equal(t, "PETR4", body.Ticker)
	assert.Equal(t, "6mo", body.Period)
	assert.Equal(t, 60, body.Bars)
	assert.Len(t, body.Rows, 10)
	assert.Contains(t, body.Signals, "rsi")
	assert.Contains(t, body.Signals, "bollinger")
	assert.NotContains(t, body.Signals, "macd")

	rec = get(t, router, "/api/v1/indicators/none3")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[IndicatorsResponse](t, rec)
	assert.Equal(t, 0, body.Bars)
	assert.Equal(t, "1y", body.Period)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/indicators/petr4?indicators=ichimoku").Code)
}

func TestFundEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := get(t, router, "/api/v1/fii/hglg11/score")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[scoring.Report](t, rec)
	assert.Greater(t, report.Fund.Score, 0.0)
	assert.NotEmpty(t, report.Analysis)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/fii/NONE11/score").Code)

	rec = get(t, router, "/api/v1/fii/segments/7/ranking?top=1")
	require.Equal(t, http.StatusOK, rec.Code)
	ranking := decode[scoring.Ranking](t, rec)
	assert.Equal(t, 7, ranking.SegmentID)
	require.Len(t, ranking.Rows, 1)
	assert.Equal(t, "BBBB11", ranking.Rows[0].Ticker)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/fii/segments/abc/ranking").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	router, _ := newTestRouter(t, m)

	get(t, router, "/health")
	get(t, router, "/api/v1/fii/NONE11/score")

	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `b3tracker_http_requests_total{code="200",route="/health"} 1`)
	assert.Contains(t, string(body), `b3tracker_http_requests_total{code="404",route="/api/v1/fii/{ticker}/score"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewValidationError("x", 1, "bad"), http.StatusBadRequest},
		{apperrors.NewLookupError("yahoo", "X", apperrors.ErrTickerNotFound), http.StatusNotFound},
		{apperrors.NewLookupError("yahoo", "X", apperrors.ErrRateLimited), http.StatusTooManyRequests},
		{apperrors.NewLookupError("yahoo", "X", apperrors.ErrTimeout), http.StatusGatewayTimeout},
		{apperrors.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{apperrors.NewLookupError("yahoo", "X", resilience.ErrCircuitOpen), http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
