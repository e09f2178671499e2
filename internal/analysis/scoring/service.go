package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/logging"
	"b3-tracker/internal/models"
)

// FundamentalsSource supplies raw fund fundamentals and sector listings.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, ticker string) (map[string]string, error)
	SectorCompanies(ctx context.Context, segmentID int) ([]models.SectorCompany, error)
}

// Report is a scored fund with the defaults applied while building it.
type Report struct {
	Fund     models.ScoredFII    `json:"fund"`
	Analysis []Field             `json:"analysis"`
	Warnings []apperrors.Warning `json:"warnings,omitempty"`
}

// Ranking is the cross-sectional table of a segment.
type Ranking struct {
	SegmentID int                 `json:"segment_id"`
	Rows      []models.RankedFII  `json:"rows"`
	Excluded  []string            `json:"excluded,omitempty"`
	Warnings  []apperrors.Warning `json:"warnings,omitempty"`
}

// Panel is the monitoring table for a set of funds.
type Panel struct {
	Decisions []models.Decision   `json:"decisions"`
	Warnings  []apperrors.Warning `json:"warnings,omitempty"`
}

// Analyzer scores, ranks and monitors funds using a FundamentalsSource.
type Analyzer struct {
	source   FundamentalsSource
	weights  Weights
	decision DecisionWeights
	workers  int
	logger   zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWeights sets the quality score weights.
func WithWeights(w Weights) Option {
	return func(a *Analyzer) { a.weights = w }
}

// WithDecisionWeights sets the decision model weights.
func WithDecisionWeights(w DecisionWeights) Option {
	return func(a *Analyzer) { a.decision = w }
}

// WithWorkers bounds the number of concurrent fundamentals lookups.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the logger used for defaulting events.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(source FundamentalsSource, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:   source,
		weights:  DefaultWeights(),
		decision: DefaultDecisionWeights(),
		workers:  4,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Weights returns the quality score weights in use.
func (a *Analyzer) Weights() Weights {
	return a.weights
}

// Report fetches and scores one fund. A failed fetch is returned as an
// error; missing fields are defaulted and reported as warnings.
func (a *Analyzer) Report(ctx context.Context, ticker string) (*Report, error) {
	ticker = models.NormalizeTicker(ticker)
	raw, err := a.source.Fundamentals(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fundamentals for %s: %w", ticker, err)
	}
	metrics, warnings := MetricsFromRaw(ticker, raw)
	logging.LogWarnings(logging.WithTicker(a.logger, ticker), warnings)

	fund := Score(metrics, a.weights)
	return &Report{Fund: fund, Analysis: Analysis(fund), Warnings: warnings}, nil
}

type fetchResult struct {
	ticker string
	report *Report
	err    error
}

// fetchAll scores tickers concurrently, preserving input order.
func (a *Analyzer) fetchAll(ctx context.Context, tickers []string) []fetchResult {
	mapper := iter.Mapper[string, fetchResult]{MaxGoroutines: a.workers}
	return mapper.Map(tickers, func(t *string) fetchResult {
		r, err := a.Report(ctx, *t)
		return fetchResult{ticker: models.NormalizeTicker(*t), report: r, err: err}
	})
}

func (a *Analyzer) lookupWarning(ticker string, err error) apperrors.Warning {
	w := apperrors.Warning{
		Kind:    apperrors.KindLookup,
		Ticker:  ticker,
		Message: "fundamentals unavailable: " + err.Error(),
	}
	a.logger.Warn().Err(err).Str("ticker", ticker).Msg("fundamentals lookup failed")
	return w
}

// RankSegment ranks every fund listed under a segment. Funds whose
// fundamentals cannot be fetched are excluded.
func (a *Analyzer) RankSegment(ctx context.Context, segmentID int) (*Ranking, error) {
	companies, err := a.source.SectorCompanies(ctx, segmentID)
	if err != nil {
		return nil, fmt.Errorf("segment %d: %w", segmentID, err)
	}
	if len(companies) == 0 {
		return nil, apperrors.NewDataError("sector", fmt.Sprint(segmentID), "no funds listed", apperrors.ErrNoData)
	}

	names := make(map[string]string, len(companies))
	tickers := make([]string, 0, len(companies))
	for _, c := range companies {
		t := models.NormalizeTicker(c.Ticker)
		if t == "" {
			continue
		}
		if _, dup := names[t]; dup {
			continue
		}
		names[t] = c.CompanyName
		tickers = append(tickers, t)
	}

	ranking, funds := a.collect(ctx, tickers)
	ranking.SegmentID = segmentID
	ranking.Rows = Rank(funds)
	for i := range ranking.Rows {
		ranking.Rows[i].CompanyName = names[ranking.Rows[i].Ticker]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ranking, nil
}

// RankTickers ranks an explicit set of funds.
func (a *Analyzer) RankTickers(ctx context.Context, tickers []string) (*Ranking, error) {
	ranking, funds := a.collect(ctx, tickers)
	ranking.Rows = Rank(funds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ranking, nil
}

func (a *Analyzer) collect(ctx context.Context, tickers []string) (*Ranking, []models.ScoredFII) {
	ranking := &Ranking{}
	funds := make([]models.ScoredFII, 0, len(tickers))
	for _, r := range a.fetchAll(ctx, tickers) {
		if r.err != nil {
			ranking.Excluded = append(ranking.Excluded, r.ticker)
			ranking.Warnings = append(ranking.Warnings, a.lookupWarning(r.ticker, r.err))
			continue
		}
		ranking.Warnings = append(ranking.Warnings, r.report.Warnings...)
		funds = append(funds, r.report.Fund)
	}
	return ranking, funds
}

// Monitor runs the decision model over tickers, sorted by points
// descending. Funds that cannot be fetched are left out with a warning.
func (a *Analyzer) Monitor(ctx context.Context, tickers []string) (*Panel, error) {
	panel := &Panel{Decisions: make([]models.Decision, 0, len(tickers))}
	for _, r := range a.fetchAll(ctx, tickers) {
		if r.err != nil {
			panel.Warnings = append(panel.Warnings, a.lookupWarning(r.ticker, r.err))
			continue
		}
		panel.Warnings = append(panel.Warnings, r.report.Warnings...)
		panel.Decisions = append(panel.Decisions, Decide(r.report.Fund, a.decision))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	SortDecisions(panel.Decisions)
	return panel, nil
}
