// Package models provides domain models for the portfolio tracker.
package models

import (
	"time"
)

// MarketSuffix is appended to B3 tickers when querying the quote provider.
// It is set once at startup from providers.market_suffix.
var MarketSuffix = ".SA"

// Direction is the sign convention of a movement: Credit acquires, Debit disposes.
type Direction string

const (
	DirectionCredit Direction = "Credit"
	DirectionDebit  Direction = "Debit"
)

// MovementType represents the kind of brokerage movement.
type MovementType string

const (
	MovementPurchase           MovementType = "Purchase"
	MovementSale               MovementType = "Sale"
	MovementTransferSettlement MovementType = "TransferSettlement"
	MovementOther              MovementType = "Other"
)

// IsTrade reports whether the movement counts as an actual buy or sell.
// Auction fractions and redemptions are deliberately left out.
func (m MovementType) IsTrade() bool {
	switch m {
	case MovementPurchase, MovementSale, MovementTransferSettlement:
		return true
	default:
		return false
	}
}

// AssetType is the fine-grained instrument classification.
type AssetType string

const (
	AssetStockON            AssetType = "Stock-ON"
	AssetStockPN            AssetType = "Stock-PN"
	AssetFII                AssetType = "FII"
	AssetETF                AssetType = "ETF"
	AssetBDR                AssetType = "BDR"
	AssetUnit               AssetType = "Unit"
	AssetOption             AssetType = "Option"
	AssetTreasuryBond       AssetType = "TreasuryBond"
	AssetPrivateFixedIncome AssetType = "PrivateFixedIncome"
	AssetOther              AssetType = "Other"
)

// AllAssetTypes lists asset types in classification priority order.
var AllAssetTypes = []AssetType{
	AssetFII, AssetETF, AssetBDR, AssetStockON, AssetStockPN, AssetUnit,
	AssetOption, AssetTreasuryBond, AssetPrivateFixedIncome, AssetOther,
}

// InvestmentType is the coarse grouping used by the dashboard tabs.
type InvestmentType string

const (
	InvestmentFII    InvestmentType = "FII"
	InvestmentStocks InvestmentType = "Stocks"
	InvestmentCDB    InvestmentType = "CDB"
	InvestmentOther  InvestmentType = "Other"
)

// ParseInvestmentType maps a user supplied label to an InvestmentType.
func ParseInvestmentType(s string) (InvestmentType, bool) {
	switch s {
	case "fii", "FII", "fiis":
		return InvestmentFII, true
	case "stocks", "Stocks", "acoes", "ações":
		return InvestmentStocks, true
	case "cdb", "CDB":
		return InvestmentCDB, true
	case "other", "Other":
		return InvestmentOther, true
	}
	return "", false
}

// Candle represents one OHLCV bar.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Signal is the categorical outcome of an indicator on its most recent bar.
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalNeutral Signal = "NEUTRAL"
)
