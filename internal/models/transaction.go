package models

import (
	"strings"
	"time"
)

// Transaction is one brokerage movement after parsing and classification.
type Transaction struct {
	Date           time.Time      `json:"date" csv:"-"`
	Ticker         string         `json:"ticker" csv:"ticker"`
	Description    string         `json:"description" csv:"description"`
	MovementLabel  string         `json:"movement_label" csv:"movement_label"`
	MovementType   MovementType   `json:"movement_type" csv:"movement_type"`
	Direction      Direction      `json:"direction" csv:"direction"`
	Quantity       float64        `json:"quantity" csv:"quantity"`
	UnitPrice      float64        `json:"unit_price" csv:"unit_price"`
	OperationValue float64        `json:"operation_value" csv:"operation_value"`
	AssetType      AssetType      `json:"asset_type" csv:"asset_type"`
	InvestmentType InvestmentType `json:"investment_type" csv:"investment_type"`
	IsTrade        bool           `json:"is_trade" csv:"is_trade"`
}

// DateString returns the date in ISO form, empty when the date did not parse.
func (t Transaction) DateString() string {
	if t.Date.IsZero() {
		return ""
	}
	return t.Date.Format("2006-01-02")
}

// CorporateAction is a split, merger or renaming event.
type CorporateAction struct {
	OldTicker     string    `json:"old_ticker"`
	NewTicker     string    `json:"new_ticker"`
	EffectiveDate time.Time `json:"effective_date"`
	Ratio         string    `json:"ratio"`
	Multiplier    float64   `json:"multiplier"`
}

// NormalizeTicker upper-cases a ticker and strips the market suffix.
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	return strings.TrimSuffix(t, MarketSuffix)
}

// QuoteSymbol returns the provider symbol for a ticker, adding the market
// suffix when it is missing.
func QuoteSymbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || strings.HasSuffix(t, MarketSuffix) {
		return t
	}
	return t + MarketSuffix
}
