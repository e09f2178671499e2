package quotes

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"b3-tracker/internal/cache"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/metrics"
	"b3-tracker/internal/models"
)

// Source is a raw quote provider.
type Source interface {
	History(ctx context.Context, symbol, period string) ([]models.Candle, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// CandleStore persists fetched price history.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}

// Service puts a TTL cache and optional persistence in front of a Source.
type Service struct {
	source     Source
	cache      cache.Cache
	store      CandleStore
	quoteTTL   time.Duration
	historyTTL time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache sets the cache and TTLs.
func WithCache(c cache.Cache, quoteTTL, historyTTL time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.quoteTTL = quoteTTL
		s.historyTTL = historyTTL
	}
}

// WithStore persists history and serves it when the provider is down.
func WithStore(store CandleStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithServiceMetrics records cache lookups.
func WithServiceMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. Without WithCache an in-memory cache with
// five minute quotes and one hour history is used.
func NewService(source Source, opts ...ServiceOption) *Service {
	s := &Service{
		source:     source,
		cache:      cache.NewMemory(0),
		quoteTTL:   5 * time.Minute,
		historyTTL: time.Hour,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastPrice returns the last price of ticker. The market suffix is added
// when missing.
func (s *Service) LastPrice(ctx context.Context, ticker string) (float64, error) {
	symbol := models.QuoteSymbol(ticker)
	key := cache.Key("quote", symbol)

	if p, err := cache.GetJSON[float64](ctx, s.cache, key); err == nil {
		s.metrics.CacheLookup("quote", true)
		return p, nil
	}
	s.metrics.CacheLookup("quote", false)

	price, err := s.source.LastPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, price, s.quoteTTL); err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return price, nil
}

// History returns daily candles for ticker. An unknown ticker yields an
// empty series and no error. Other provider failures fall back to stored
// candles when a store is configured.
func (s *Service) History(ctx context.Context, ticker, period string) ([]models.Candle, error) {
	if !ValidPeriod(period) {
		return nil, apperrors.NewValidationError("period", period, "unknown period")
	}

	symbol := models.QuoteSymbol(ticker)
	key := cache.Key("history", symbol, period)

	if candles, err := cache.GetJSON[[]models.Candle](ctx, s.cache, key); err == nil {
		s.metrics.CacheLookup("history", true)
		return candles, nil
	}
	s.metrics.CacheLookup("history", false)

	candles, err := s.source.History(ctx, symbol, period)
	switch {
	case apperrors.Is(err, apperrors.ErrTickerNotFound):
		s.logger.Warn().Str("symbol", symbol).Msg("unknown ticker, returning empty series")
		return []models.Candle{}, nil
	case err != nil:
		return s.fromStore(ctx, symbol, period, err)
	}

	if err := cache.SetJSON(ctx, s.cache, key, candles, s.historyTTL); err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	if s.store != nil && len(candles) > 0 {
		if err := s.store.SaveCandles(ctx, symbol, candles); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to persist candles")
		}
	}
	return candles, nil
}

func (s *Service) fromStore(ctx context.Context, symbol, period string, cause error) ([]models.Candle, error) {
	if s.store == nil {
		return nil, cause
	}
	to := time.Now()
	candles, err := s.store.GetCandles(ctx, symbol, PeriodStart(period, to), to)
	if err != nil || len(candles) == 0 {
		return nil, cause
	}
	s.logger.Warn().Err(cause).Str("symbol", symbol).Int("candles", len(candles)).
		Msg("provider unavailable, serving stored history")
	return candles, nil
}

// PeriodStart returns the first day covered by a lookback window ending at
// to. "max" is the zero time.
func PeriodStart(period string, to time.Time) time.Time {
	switch period {
	case "1mo":
		return to.AddDate(0, -1, 0)
	case "3mo":
		return to.AddDate(0, -3, 0)
	case "6mo":
		return to.AddDate(0, -6, 0)
	case "1y":
		return to.AddDate(-1, 0, 0)
	case "2y":
		return to.AddDate(-2, 0, 0)
	case "5y":
		return to.AddDate(-5, 0, 0)
	}
	return time.Time{}
}
