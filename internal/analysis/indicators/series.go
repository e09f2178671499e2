package indicators

import (
	"math"
	"sort"

	"b3-tracker/internal/models"
)

// Output column names.
const (
	ColSMAShort   = "SMA_short"
	ColSMALong    = "SMA_long"
	ColRSI        = "RSI"
	ColSMA        = "SMA"
	ColSTD        = "STD"
	ColUpperBand  = "UpperBand"
	ColLowerBand  = "LowerBand"
	ColEMAFast    = "EMA_fast"
	ColEMASlow    = "EMA_slow"
	ColMACD       = "MACD"
	ColMACDSignal = "MACD_Signal"
)

// Series is a price series enriched with indicator columns. Every column
// has one value per candle; undefined leading values are NaN.
type Series struct {
	Candles []models.Candle
	columns map[string][]float64
}

// NewSeries wraps candles (ascending by time) in a Series.
func NewSeries(candles []models.Candle) *Series {
	cs := make([]models.Candle, len(candles))
	copy(cs, candles)
	return &Series{Candles: cs, columns: make(map[string][]float64)}
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Candles)
}

// Has reports whether every named column is present.
func (s *Series) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := s.columns[n]; !ok {
			return false
		}
	}
	return true
}

// Column returns a column or nil when absent.
func (s *Series) Column(name string) []float64 {
	return s.columns[name]
}

// Set stores a column. Values must have one entry per candle.
func (s *Series) Set(name string, values []float64) {
	if len(values) != len(s.Candles) {
		return
	}
	s.columns[name] = values
}

// Columns returns the column names in sorted order.
func (s *Series) Columns() []string {
	names := make([]string, 0, len(s.columns))
	for n := range s.columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Closes returns the close prices.
func (s *Series) Closes() []float64 {
	return closePrices(s.Candles)
}

// Row is one bar of an enriched series. NaN values are omitted.
type Row struct {
	Candle models.Candle      `json:"candle"`
	Values map[string]float64 `json:"values"`
}

// Tail returns the last n rows.
func (s *Series) Tail(n int) []Row {
	start := len(s.Candles) - n
	if start < 0 {
		start = 0
	}
	rows := make([]Row, 0, len(s.Candles)-start)
	for i := start; i < len(s.Candles); i++ {
		r := Row{Candle: s.Candles[i], Values: make(map[string]float64, len(s.columns))}
		for name, col := range s.columns {
			if !math.IsNaN(col[i]) {
				r.Values[name] = col[i]
			}
		}
		rows = append(rows, r)
	}
	return rows
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	c := NewSeries(s.Candles)
	for name, col := range s.columns {
		cp := make([]float64, len(col))
		copy(cp, col)
		c.columns[name] = cp
	}
	return c
}
