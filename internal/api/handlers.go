// Package api serves the read-only JSON API consumed by the presentation
// layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"b3-tracker/internal/analysis/indicators"
	"b3-tracker/internal/analysis/scoring"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/metrics"
	"b3-tracker/internal/models"
	"b3-tracker/internal/portfolio"
	"b3-tracker/internal/resilience"
	"b3-tracker/internal/store"
)

// TransactionSource reads persisted transactions.
type TransactionSource interface {
	GetTransactions(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, error)
	LastImport(ctx context.Context) (*store.ImportBatch, error)
}

// HistorySource returns daily price history.
type HistorySource interface {
	History(ctx context.Context, ticker, period string) ([]models.Candle, error)
}

// FundAnalyzer scores and ranks real estate funds.
type FundAnalyzer interface {
	Report(ctx context.Context, ticker string) (*scoring.Report, error)
	RankSegment(ctx context.Context, segmentID int) (*scoring.Ranking, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	transactions  TransactionSource
	prices        portfolio.PriceLookup
	history       HistorySource
	engine        *indicators.Engine
	funds         FundAnalyzer
	breakers      *resilience.Registry
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	defaultPeriod string
	tailRows      int
}

// Deps are the collaborators of a Handler. Prices, History and Funds may be
// nil; the endpoints depending on them then answer 503.
type Deps struct {
	Transactions  TransactionSource
	Prices        portfolio.PriceLookup
	History       HistorySource
	Engine        *indicators.Engine
	Funds         FundAnalyzer
	Breakers      *resilience.Registry
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
	DefaultPeriod string
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		transactions:  d.Transactions,
		prices:        d.Prices,
		history:       d.History,
		engine:        d.Engine,
		funds:         d.Funds,
		breakers:      d.Breakers,
		metrics:       d.Metrics,
		logger:        d.Logger,
		defaultPeriod: d.DefaultPeriod,
		tailRows:      10,
	}
	if h.defaultPeriod == "" {
		h.defaultPeriod = "1y"
	}
	if h.engine == nil {
		h.engine = indicators.NewDefaultEngine(4, indicators.DefaultParams())
	}
	return h
}

// PositionsResponse is the body of GET /positions.
type PositionsResponse struct {
	Positions []models.Position       `json:"positions"`
	Summary   models.PortfolioSummary `json:"summary"`
	Warnings  []apperrors.Warning     `json:"warnings,omitempty"`
}

// IndicatorsResponse is the body of GET /indicators/{ticker}.
type IndicatorsResponse struct {
	Ticker  string                   `json:"ticker"`
	Period  string                   `json:"period"`
	Bars    int                      `json:"bars"`
	Signals map[string]models.Signal `json:"signals"`
	Rows    []indicators.Row         `json:"rows"`
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	services := map[string]string{}

	if h.transactions == nil {
		services["database"] = "not configured"
		health["status"] = "degraded"
	} else if batch, err := h.transactions.LastImport(ctx); err != nil {
		if apperrors.Is(err, apperrors.ErrNoData) {
			services["database"] = "healthy (no import yet)"
		} else {
			services["database"] = "unhealthy: " + err.Error()
			health["status"] = "degraded"
		}
	} else {
		services["database"] = "healthy"
		health["last_import"] = batch
	}

	for name, configured := range map[string]bool{
		"quotes":       h.prices != nil && h.history != nil,
		"fundamentals": h.funds != nil,
	} {
		if configured {
			services[name] = "configured"
		} else {
			services[name] = "not configured"
		}
	}
	if h.breakers != nil {
		stats := h.breakers.AllStats()
		for _, st := range stats {
			if st.State == resilience.StateOpen {
				services[st.Name] = "circuit open"
				health["status"] = "degraded"
			}
		}
		health["breakers"] = stats
	}
	health["services"] = services

	respondJSON(w, http.StatusOK, health)
}

// GetPositions handles GET /positions?type=fii|stocks
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	filter, err := portfolio.ParseFilter(r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, err)
		return
	}

	txs, err := h.transactions.GetTransactions(r.Context(), store.TransactionFilter{})
	if err != nil {
		respondError(w, err)
		return
	}

	res := portfolio.NewAggregator(h.prices).Aggregate(r.Context(), txs, filter)
	h.metrics.RecordWarnings(res.Warnings)
	respondJSON(w, http.StatusOK, PositionsResponse{
		Positions: res.Positions,
		Summary:   res.Summary,
		Warnings:  res.Warnings,
	})
}

// GetTransactions handles GET /transactions?type=&ticker=&trades=&limit=
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TransactionFilter{Ticker: q.Get("ticker")}

	if t := q.Get("type"); t != "" {
		it, ok := models.ParseInvestmentType(t)
		if !ok {
			respondError(w, apperrors.NewValidationError("type", t, "unknown investment type"))
			return
		}
		filter.InvestmentTypes = []models.InvestmentType{it}
	}
	if v := q.Get("trades"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, apperrors.NewValidationError("trades", v, "must be a boolean"))
			return
		}
		filter.TradesOnly = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, apperrors.NewValidationError("limit", v, "must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	txs, err := h.transactions.GetTransactions(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// GetIndicators handles GET /indicators/{ticker}?period=&indicators=
func (h *Handler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, apperrors.ErrProviderUnavailable)
		return
	}
	ticker := models.NormalizeTicker(mux.Vars(r)["ticker"])
	period := r.URL.Query().Get("period")
	if period == "" {
		period = h.defaultPeriod
	}

	candles, err := h.history.History(r.Context(), ticker, period)
	if err != nil {
		respondError(w, err)
		return
	}

	res, err := h.engine.Analyze(r.Context(), candles, indicators.ParseNames(r.URL.Query().Get("indicators")))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, IndicatorsResponse{
		Ticker:  ticker,
		Period:  period,
		Bars:    res.Series.Len(),
		Signals: res.Signals,
		Rows:    res.Series.Tail(h.tailRows),
	})
}

// GetFundScore handles GET /fii/{ticker}/score
func (h *Handler) GetFundScore(w http.ResponseWriter, r *http.Request) {
	if h.funds == nil {
		respondError(w, apperrors.ErrProviderUnavailable)
		return
	}
	report, err := h.funds.Report(r.Context(), mux.Vars(r)["ticker"])
	if err != nil {
		respondError(w, err)
		return
	}
	h.metrics.RecordWarnings(report.Warnings)
	respondJSON(w, http.StatusOK, report)
}

// GetSegmentRanking handles GET /fii/segments/{id}/ranking?top=
func (h *Handler) GetSegmentRanking(w http.ResponseWriter, r *http.Request) {
	if h.funds == nil {
		respondError(w, apperrors.ErrProviderUnavailable)
		return
	}
	raw := mux.Vars(r)["id"]
	id, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, apperrors.NewValidationError("id", raw, "segment id must be an integer"))
		return
	}

	ranking, err := h.funds.RankSegment(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	h.metrics.RecordWarnings(ranking.Warnings)

	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, apperrors.NewValidationError("top", v, "must be a non-negative integer"))
			return
		}
		ranking.Rows = scoring.Top(ranking.Rows, n)
	}
	respondJSON(w, http.StatusOK, ranking)
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var validation *apperrors.ValidationError
	switch {
	case errors.As(err, &validation),
		errors.Is(err, apperrors.ErrConfigInvalid),
		errors.Is(err, indicators.ErrUnknownIndicator),
		errors.Is(err, indicators.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrTickerNotFound), errors.Is(err, apperrors.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
