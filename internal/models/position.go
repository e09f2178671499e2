package models

import (
	"github.com/shopspring/decimal"
)

// Position is an aggregated holding of one ticker. Values are carried at
// full precision; use Rounded for presentation.
type Position struct {
	Ticker         string         `json:"ticker"`
	AssetType      AssetType      `json:"asset_type"`
	InvestmentType InvestmentType `json:"investment_type"`
	NetQuantity    float64        `json:"net_quantity"`
	AverageCost    float64        `json:"average_cost"`
	TotalInvested  float64        `json:"total_invested"`
	CurrentPrice   float64        `json:"current_price"`
	MarketValue    float64        `json:"market_value"`
	UnrealizedPnL  float64        `json:"unrealized_pnl"`
	// PriceMissing is set when CurrentPrice was defaulted to zero.
	PriceMissing bool `json:"price_missing"`
}

// PnLRatio returns unrealized P&L over total invested, 0 when nothing is invested.
func (p Position) PnLRatio() float64 {
	if p.TotalInvested <= 0 {
		return 0
	}
	return p.UnrealizedPnL / p.TotalInvested
}

// Rounded returns a copy with monetary fields rounded to 2 decimal places.
func (p Position) Rounded() Position {
	p.AverageCost = Round2(p.AverageCost)
	p.TotalInvested = Round2(p.TotalInvested)
	p.CurrentPrice = Round2(p.CurrentPrice)
	p.MarketValue = Round2(p.MarketValue)
	p.UnrealizedPnL = Round2(p.UnrealizedPnL)
	return p
}

// PortfolioSummary holds portfolio-level totals.
type PortfolioSummary struct {
	TotalInvested    float64 `json:"total_invested"`
	TotalMarketValue float64 `json:"total_market_value"`
	TotalPnL         float64 `json:"total_pnl"`
	PnLRatio         float64 `json:"pnl_ratio"`
	Positions        int     `json:"positions"`
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
