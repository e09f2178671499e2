// Package portfolio aggregates transactions into positions and P&L.
package portfolio

import (
	"context"
	"sort"
	"strings"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
)

// PriceLookup returns the latest price for a quote symbol (ticker with
// market suffix).
type PriceLookup interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// PriceLookupFunc adapts a function to PriceLookup.
type PriceLookupFunc func(ctx context.Context, symbol string) (float64, error)

// LastPrice calls f.
func (f PriceLookupFunc) LastPrice(ctx context.Context, symbol string) (float64, error) {
	return f(ctx, symbol)
}

// Filter selects the transactions that enter the aggregation. Empty type
// lists match everything.
type Filter struct {
	InvestmentTypes []models.InvestmentType
	AssetTypes      []models.AssetType
	TradesOnly      bool
}

// DefaultFilter keeps only trade rows.
func DefaultFilter() Filter {
	return Filter{TradesOnly: true}
}

// FIIFilter selects real-estate fund trades.
func FIIFilter() Filter {
	return Filter{InvestmentTypes: []models.InvestmentType{models.InvestmentFII}, TradesOnly: true}
}

// StocksFilter selects equity trades (shares, units, BDRs and ETFs).
func StocksFilter() Filter {
	return Filter{InvestmentTypes: []models.InvestmentType{models.InvestmentStocks}, TradesOnly: true}
}

// ParseFilter maps a user-facing selector ("fii", "stocks", "all") to a
// filter. Empty means all trades.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return DefaultFilter(), nil
	case "fii", "fiis":
		return FIIFilter(), nil
	case "stocks", "acoes":
		return StocksFilter(), nil
	}
	return Filter{}, apperrors.NewValidationError("type", s, "must be fii or stocks")
}

// Match reports whether tx passes the filter.
func (f Filter) Match(tx models.Transaction) bool {
	if f.TradesOnly && !tx.IsTrade {
		return false
	}
	if len(f.InvestmentTypes) > 0 && !containsInvestment(f.InvestmentTypes, tx.InvestmentType) {
		return false
	}
	if len(f.AssetTypes) > 0 && !containsAsset(f.AssetTypes, tx.AssetType) {
		return false
	}
	return true
}

// Apply returns the matching transactions.
func (f Filter) Apply(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Result is the position table plus portfolio totals.
type Result struct {
	Positions []models.Position
	Summary   models.PortfolioSummary
	Warnings  []apperrors.Warning
}

// Aggregator computes positions from transactions.
type Aggregator struct {
	prices PriceLookup
}

// NewAggregator creates an aggregator. prices may be nil, in which case
// every current price is zero.
func NewAggregator(prices PriceLookup) *Aggregator {
	return &Aggregator{prices: prices}
}

type group struct {
	ticker      string
	asset       models.AssetType
	investment  models.InvestmentType
	creditQty   float64
	creditCost  float64
	creditValue float64
	debitQty    float64
	debitValue  float64
}

// Aggregate groups the filtered transactions by ticker and values the open
// positions. Tickers whose net quantity is not positive are dropped. A
// failed price lookup sets the price to zero, records a warning and moves on.
func (a *Aggregator) Aggregate(ctx context.Context, txs []models.Transaction, filter Filter) Result {
	groups := make(map[string]*group)
	for _, tx := range filter.Apply(txs) {
		if tx.Ticker == "" {
			continue
		}
		g, ok := groups[tx.Ticker]
		if !ok {
			g = &group{ticker: tx.Ticker, asset: tx.AssetType, investment: tx.InvestmentType}
			groups[tx.Ticker] = g
		}
		switch tx.Direction {
		case models.DirectionCredit:
			g.creditQty += tx.Quantity
			g.creditCost += tx.Quantity * tx.UnitPrice
			g.creditValue += tx.OperationValue
		case models.DirectionDebit:
			g.debitQty += tx.Quantity
			g.debitValue += tx.OperationValue
		}
	}

	tickers := make([]string, 0, len(groups))
	for t := range groups {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	res := Result{Positions: make([]models.Position, 0, len(tickers))}
	for _, t := range tickers {
		g := groups[t]
		net := g.creditQty - g.debitQty
		if net <= 0 {
			continue
		}

		pos := models.Position{
			Ticker:         g.ticker,
			AssetType:      g.asset,
			InvestmentType: g.investment,
			NetQuantity:    net,
			TotalInvested:  g.creditValue - g.debitValue,
		}
		if g.creditQty > 0 {
			pos.AverageCost = g.creditCost / g.creditQty
		} else {
			res.Warnings = append(res.Warnings, apperrors.Warning{
				Kind:    apperrors.KindDivision,
				Ticker:  t,
				Field:   "average_cost",
				Message: "no acquisition quantity, average cost set to 0",
			})
		}

		price, err := a.lookup(ctx, t)
		if err != nil {
			pos.PriceMissing = true
			res.Warnings = append(res.Warnings, apperrors.Warning{
				Kind:    apperrors.KindLookup,
				Ticker:  t,
				Field:   "current_price",
				Message: err.Error(),
			})
		}
		pos.CurrentPrice = price
		pos.MarketValue = price * net
		pos.UnrealizedPnL = pos.MarketValue - pos.TotalInvested

		res.Positions = append(res.Positions, pos)
	}

	res.Summary = Summarize(res.Positions)
	return res
}

func (a *Aggregator) lookup(ctx context.Context, ticker string) (float64, error) {
	if a.prices == nil {
		return 0, apperrors.NewLookupError("none", ticker, apperrors.ErrProviderUnavailable)
	}
	price, err := a.prices.LastPrice(ctx, models.QuoteSymbol(ticker))
	if err != nil {
		return 0, err
	}
	if price < 0 {
		return 0, apperrors.NewLookupError("quotes", ticker, apperrors.ErrNoData)
	}
	return price, nil
}

// Summarize computes portfolio-level totals.
func Summarize(positions []models.Position) models.PortfolioSummary {
	var s models.PortfolioSummary
	for _, p := range positions {
		s.TotalInvested += p.TotalInvested
		s.TotalMarketValue += p.MarketValue
	}
	s.TotalPnL = s.TotalMarketValue - s.TotalInvested
	if s.TotalInvested > 0 {
		s.PnLRatio = s.TotalPnL / s.TotalInvested
	}
	s.Positions = len(positions)
	return s
}

// Tickers returns the distinct tickers of the filtered transactions, sorted.
func Tickers(txs []models.Transaction, filter Filter) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tx := range filter.Apply(txs) {
		if tx.Ticker != "" && !seen[tx.Ticker] {
			seen[tx.Ticker] = true
			out = append(out, tx.Ticker)
		}
	}
	sort.Strings(out)
	return out
}

func containsInvestment(list []models.InvestmentType, v models.InvestmentType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsAsset(list []models.AssetType, v models.AssetType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
