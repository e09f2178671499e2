package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

var _ DataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating when needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS import_batches (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		imported_at DATETIME NOT NULL,
		row_count INTEGER NOT NULL,
		trade_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		date DATETIME,
		ticker TEXT NOT NULL,
		description TEXT,
		movement_label TEXT,
		movement_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity REAL NOT NULL,
		unit_price REAL NOT NULL,
		operation_value REAL NOT NULL,
		asset_type TEXT NOT NULL,
		investment_type TEXT NOT NULL,
		is_trade INTEGER NOT NULL,
		FOREIGN KEY (batch_id) REFERENCES import_batches(id)
	);

	CREATE TABLE IF NOT EXISTS corporate_actions (
		seq INTEGER PRIMARY KEY,
		old_ticker TEXT NOT NULL,
		new_ticker TEXT NOT NULL,
		effective_date DATETIME,
		ratio TEXT,
		multiplier REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_ticker ON transactions(ticker);
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol ON candles(symbol);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Transactions
// ============================================================================

// ReplaceTransactions stores txs as the only imported batch. Previous
// batches and their rows are removed in the same transaction.
func (s *SQLiteStore) ReplaceTransactions(ctx context.Context, batch ImportBatch, txs []models.Transaction) error {
	if batch.ID == "" {
		return apperrors.NewValidationError("batch_id", "", "batch id is required")
	}
	if batch.ImportedAt.IsZero() {
		batch.ImportedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM import_batches`); err != nil {
		return fmt.Errorf("failed to clear batches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO import_batches (id, source, imported_at, row_count, trade_count, warning_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.Source, batch.ImportedAt, batch.Rows, batch.Trades, batch.Warnings); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (batch_id, seq, date, ticker, description, movement_label, movement_type,
			direction, quantity, unit_price, operation_value, asset_type, investment_type, is_trade)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		_, err := stmt.ExecContext(ctx, batch.ID, i, nullTime(t.Date), t.Ticker, t.Description, t.MovementLabel,
			string(t.MovementType), string(t.Direction), t.Quantity, t.UnitPrice, t.OperationValue,
			string(t.AssetType), string(t.InvestmentType), boolToInt(t.IsTrade))
		if err != nil {
			return fmt.Errorf("failed to insert transaction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.markSynced(string(SyncTypeTransactions))
	return nil
}

// GetTransactions returns stored transactions in import order.
func (s *SQLiteStore) GetTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT date, ticker, description, movement_label, movement_type, direction,
			quantity, unit_price, operation_value, asset_type, investment_type, is_trade
		FROM transactions WHERE 1=1`
	var args []interface{}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, models.NormalizeTicker(filter.Ticker))
	}
	if len(filter.InvestmentTypes) > 0 {
		placeholders := make([]string, len(filter.InvestmentTypes))
		for i, it := range filter.InvestmentTypes {
			placeholders[i] = "?"
			args = append(args, string(it))
		}
		query += " AND investment_type IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.TradesOnly {
		query += " AND is_trade = 1"
	}
	if !filter.StartDate.IsZero() {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseError, fmt.Sprintf("query transactions: %v", err))
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		var (
			t                                    models.Transaction
			date                                 sql.NullTime
			description, label                   sql.NullString
			movement, direction, asset, invested string
			isTrade                              int
		)
		if err := rows.Scan(&date, &t.Ticker, &description, &label, &movement, &direction,
			&t.Quantity, &t.UnitPrice, &t.OperationValue, &asset, &invested, &isTrade); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if date.Valid {
			t.Date = date.Time
		}
		t.Description = description.String
		t.MovementLabel = label.String
		t.MovementType = models.MovementType(movement)
		t.Direction = models.Direction(direction)
		t.AssetType = models.AssetType(asset)
		t.InvestmentType = models.InvestmentType(invested)
		t.IsTrade = isTrade == 1
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// LastImport returns the current batch, or ErrNoData before any import.
func (s *SQLiteStore) LastImport(ctx context.Context) (*ImportBatch, error) {
	var b ImportBatch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, imported_at, row_count, trade_count, warning_count
		FROM import_batches ORDER BY imported_at DESC LIMIT 1
	`).Scan(&b.ID, &b.Source, &b.ImportedAt, &b.Rows, &b.Trades, &b.Warnings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDataError("import", "", "no transactions imported", apperrors.ErrNoData)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last import: %w", err)
	}
	return &b, nil
}

// ============================================================================
// Corporate actions
// ============================================================================

// ReplaceActions stores the corporate action table, preserving order.
func (s *SQLiteStore) ReplaceActions(ctx context.Context, actions []models.CorporateAction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM corporate_actions`); err != nil {
		return fmt.Errorf("failed to clear corporate actions: %w", err)
	}
	for i, a := range actions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO corporate_actions (seq, old_ticker, new_ticker, effective_date, ratio, multiplier)
			VALUES (?, ?, ?, ?, ?, ?)
		`, i, a.OldTicker, a.NewTicker, nullTime(a.EffectiveDate), a.Ratio, a.Multiplier); err != nil {
			return fmt.Errorf("failed to insert corporate action %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.markSynced(string(SyncTypeActions))
	return nil
}

// GetActions returns the corporate action table in its original order.
func (s *SQLiteStore) GetActions(ctx context.Context) ([]models.CorporateAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT old_ticker, new_ticker, effective_date, ratio, multiplier
		FROM corporate_actions ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query corporate actions: %w", err)
	}
	defer rows.Close()

	var actions []models.CorporateAction
	for rows.Next() {
		var (
			a     models.CorporateAction
			date  sql.NullTime
			ratio sql.NullString
		)
		if err := rows.Scan(&a.OldTicker, &a.NewTicker, &date, &ratio, &a.Multiplier); err != nil {
			return nil, fmt.Errorf("failed to scan corporate action: %w", err)
		}
		if date.Valid {
			a.EffectiveDate = date.Time
		}
		a.Ratio = ratio.String
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ============================================================================
// Candles
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.markSynced(string(SyncTypeCandles), SyncTypeCandles.For(symbol))
	return nil
}

// GetCandles retrieves candles from the database, oldest first. A zero from
// means no lower bound.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ?
	`, symbol).Scan(&ts)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return parseSQLiteTime(ts.String)
}

// ============================================================================
// Sync
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}

// markSynced is best effort: a failed bookkeeping write does not undo the
// data write.
func (s *SQLiteStore) markSynced(dataTypes ...string) {
	now := time.Now()
	for _, dt := range dataTypes {
		_ = s.SetLastSync(dt, now)
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sqliteTimeLayouts are the formats go-sqlite3 writes time.Time values in.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
