// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"b3-tracker/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Imports
	ReplaceTransactions(ctx context.Context, batch ImportBatch, txs []models.Transaction) error
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	LastImport(ctx context.Context) (*ImportBatch, error)

	// Corporate actions, kept in table order
	ReplaceActions(ctx context.Context, actions []models.CorporateAction) error
	GetActions(ctx context.Context) ([]models.CorporateAction, error)

	// Candles
	SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// ImportBatch describes one import of a brokerage export.
type ImportBatch struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"imported_at"`
	Rows       int       `json:"rows"`
	Trades     int       `json:"trades"`
	Warnings   int       `json:"warnings"`
}

// TransactionFilter represents filters for querying transactions.
type TransactionFilter struct {
	Ticker          string
	InvestmentTypes []models.InvestmentType
	TradesOnly      bool
	StartDate       time.Time
	EndDate         time.Time
	Limit           int
}
