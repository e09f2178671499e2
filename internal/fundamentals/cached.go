package fundamentals

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"b3-tracker/internal/analysis/scoring"
	"b3-tracker/internal/cache"
	"b3-tracker/internal/metrics"
	"b3-tracker/internal/models"
)

// Cached memoizes a fundamentals source. Cache failures never fail a lookup
// and failed lookups are not cached.
type Cached struct {
	source  scoring.FundamentalsSource
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

var _ scoring.FundamentalsSource = (*Cached)(nil)

// NewCached wraps source with c. A nil cache gets an in-memory one.
func NewCached(source scoring.FundamentalsSource, c cache.Cache, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Cached {
	if c == nil {
		c = cache.NewMemory(0)
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Cached{source: source, cache: c, ttl: ttl, metrics: m, logger: logger}
}

// Fundamentals returns the raw metrics of ticker.
func (c *Cached) Fundamentals(ctx context.Context, ticker string) (map[string]string, error) {
	ticker = models.NormalizeTicker(ticker)
	key := cache.Key("fundamentals", ticker)

	if raw, err := cache.GetJSON[map[string]string](ctx, c.cache, key); err == nil {
		c.metrics.CacheLookup("fundamentals", true)
		return raw, nil
	}
	c.metrics.CacheLookup("fundamentals", false)

	raw, err := c.source.Fundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, c.cache, key, raw, c.ttl); err != nil {
		c.logger.Debug().Err(err).Str("ticker", ticker).Msg("cache write failed")
	}
	return raw, nil
}

// SectorCompanies returns the funds listed under a segment.
func (c *Cached) SectorCompanies(ctx context.Context, segmentID int) ([]models.SectorCompany, error) {
	key := cache.Key("sector", strconv.Itoa(segmentID))

	if list, err := cache.GetJSON[[]models.SectorCompany](ctx, c.cache, key); err == nil {
		c.metrics.CacheLookup("sector", true)
		return list, nil
	}
	c.metrics.CacheLookup("sector", false)

	list, err := c.source.SectorCompanies(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, c.cache, key, list, c.ttl); err != nil {
		c.logger.Debug().Err(err).Int("segment", segmentID).Msg("cache write failed")
	}
	return list, nil
}
