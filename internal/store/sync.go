package store

import (
	"fmt"
	"sort"
	"time"
)

// SyncDataType represents the type of data being synced.
type SyncDataType string

const (
	SyncTypeTransactions SyncDataType = "transactions"
	SyncTypeActions      SyncDataType = "corporate_actions"
	SyncTypeCandles      SyncDataType = "candles"
)

// For scopes a data type to one symbol ("candles:PETR4.SA").
func (t SyncDataType) For(symbol string) string {
	if symbol == "" {
		return string(t)
	}
	return string(t) + ":" + symbol
}

// SyncStatus represents the current sync status.
type SyncStatus struct {
	DataType     string    `json:"data_type"`
	LastSync     time.Time `json:"last_sync"`
	IsStale      bool      `json:"is_stale"`
	StaleMinutes int       `json:"stale_minutes"`
}

// StaleThresholds is how old each data type may be before it is stale.
type StaleThresholds map[SyncDataType]time.Duration

// DefaultStaleThresholds returns default thresholds.
func DefaultStaleThresholds() StaleThresholds {
	return StaleThresholds{
		SyncTypeTransactions: 7 * 24 * time.Hour,
		SyncTypeActions:      30 * 24 * time.Hour,
		SyncTypeCandles:      24 * time.Hour,
	}
}

// SyncTracker reports the freshness of persisted data.
type SyncTracker struct {
	store      DataStore
	thresholds StaleThresholds
	now        func() time.Time
}

// NewSyncTracker creates a tracker. Nil thresholds use the defaults.
func NewSyncTracker(store DataStore, thresholds StaleThresholds) *SyncTracker {
	if thresholds == nil {
		thresholds = DefaultStaleThresholds()
	}
	return &SyncTracker{store: store, thresholds: thresholds, now: time.Now}
}

// MarkSynced marks a data type (optionally scoped to a symbol) as synced now.
func (st *SyncTracker) MarkSynced(dataType SyncDataType, symbol string) error {
	key := dataType.For(symbol)
	if err := st.store.SetLastSync(key, st.now()); err != nil {
		return fmt.Errorf("failed to mark %s as synced: %w", key, err)
	}
	return nil
}

// Status returns the sync status of a data type, optionally scoped to a
// symbol.
func (st *SyncTracker) Status(dataType SyncDataType, symbol string) *SyncStatus {
	key := dataType.For(symbol)
	lastSync := st.store.GetLastSync(key)

	threshold := st.thresholds[dataType]
	if threshold == 0 {
		threshold = time.Hour
	}

	status := &SyncStatus{DataType: key, LastSync: lastSync, IsStale: true}
	if lastSync.IsZero() {
		return status
	}
	age := st.now().Sub(lastSync)
	status.IsStale = age > threshold
	status.StaleMinutes = int(age.Minutes())
	return status
}

// AllStatus returns the unscoped status of every tracked data type.
func (st *SyncTracker) AllStatus() []*SyncStatus {
	types := make([]string, 0, len(st.thresholds))
	for t := range st.thresholds {
		types = append(types, string(t))
	}
	sort.Strings(types)

	statuses := make([]*SyncStatus, 0, len(types))
	for _, t := range types {
		statuses = append(statuses, st.Status(SyncDataType(t), ""))
	}
	return statuses
}

// FormatSyncStatus returns a human-readable sync status string.
func FormatSyncStatus(status *SyncStatus) string {
	if status.LastSync.IsZero() {
		return fmt.Sprintf("%s: never synced", status.DataType)
	}

	ts := status.LastSync.Format("2006-01-02 15:04")
	if status.IsStale {
		return fmt.Sprintf("%s: stale (last sync %s, %s)", status.DataType, ts, formatAge(status.StaleMinutes))
	}
	return fmt.Sprintf("%s: fresh (last sync %s)", status.DataType, ts)
}

func formatAge(minutes int) string {
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%d minutes ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%d hours ago", minutes/60)
	default:
		return fmt.Sprintf("%d days ago", minutes/(24*60))
	}
}
