package indicators

import (
	"fmt"

	"b3-tracker/internal/models"
)

// SMACrossover compares a short and a long simple moving average.
type SMACrossover struct {
	short int
	long  int
}

// NewSMACrossover creates a new SMA crossover indicator.
func NewSMACrossover(short, long int) *SMACrossover {
	return &SMACrossover{short: short, long: long}
}

func (s *SMACrossover) Name() string {
	return NameSMA
}

func (s *SMACrossover) String() string {
	return fmt.Sprintf("SMA_%d_%d", s.short, s.long)
}

// Period returns the longest window.
func (s *SMACrossover) Period() int {
	return s.long
}

func (s *SMACrossover) Columns() []string {
	return []string{ColSMAShort, ColSMALong}
}

func (s *SMACrossover) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if s.short <= 0 || s.long <= 0 {
		return nil, ErrInvalidPeriod
	}
	closes := closePrices(candles)
	return map[string][]float64{
		ColSMAShort: rollingMean(closes, s.short),
		ColSMALong:  rollingMean(closes, s.long),
	}, nil
}

// Signal is Buy when the short average crosses above the long one on the
// last bar and Sell when it crosses below.
func (s *SMACrossover) Signal(series *Series) models.Signal {
	return crossSignal(series.Column(ColSMAShort), series.Column(ColSMALong))
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fast   int
	slow   int
	signal int
}

// NewMACD creates a new MACD indicator.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: fast, slow: slow, signal: signal}
}

func (m *MACD) Name() string {
	return NameMACD
}

func (m *MACD) String() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fast, m.slow, m.signal)
}

func (m *MACD) Period() int {
	return m.slow
}

func (m *MACD) Columns() []string {
	return []string{ColEMAFast, ColEMASlow, ColMACD, ColMACDSignal}
}

func (m *MACD) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.fast <= 0 || m.slow <= 0 || m.signal <= 0 {
		return nil, ErrInvalidPeriod
	}
	closes := closePrices(candles)
	fast := ewm(closes, m.fast)
	slow := ewm(closes, m.slow)

	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}

	return map[string][]float64{
		ColEMAFast:    fast,
		ColEMASlow:    slow,
		ColMACD:       macd,
		ColMACDSignal: ewm(macd, m.signal),
	}, nil
}

// Signal is Buy when MACD crosses above its signal line and Sell when it
// crosses below.
func (m *MACD) Signal(series *Series) models.Signal {
	return crossSignal(series.Column(ColMACD), series.Column(ColMACDSignal))
}
