package indicators

import (
	"fmt"
	"math"

	"b3-tracker/internal/models"
)

// BollingerBands calculates Bollinger Bands.
type BollingerBands struct {
	period    int
	stdDevMul float64
}

// NewBollingerBands creates a new Bollinger Bands indicator.
func NewBollingerBands(period int, stdDevMul float64) *BollingerBands {
	return &BollingerBands{
		period:    period,
		stdDevMul: stdDevMul,
	}
}

func (b *BollingerBands) Name() string {
	return NameBollinger
}

func (b *BollingerBands) String() string {
	return fmt.Sprintf("BollingerBands_%d_%.1f", b.period, b.stdDevMul)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Columns() []string {
	return []string{ColSMA, ColSTD, ColUpperBand, ColLowerBand}
}

func (b *BollingerBands) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if b.period <= 0 || b.stdDevMul <= 0 {
		return nil, ErrInvalidPeriod
	}

	n := len(candles)
	closes := closePrices(candles)
	middle := rollingMean(closes, b.period)
	sd := rollingStd(closes, b.period)

	upper := nan(n)
	lower := nan(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(middle[i]) || math.IsNaN(sd[i]) {
			continue
		}
		upper[i] = middle[i] + b.stdDevMul*sd[i]
		lower[i] = middle[i] - b.stdDevMul*sd[i]
	}

	return map[string][]float64{
		ColSMA:       middle,
		ColSTD:       sd,
		ColUpperBand: upper,
		ColLowerBand: lower,
	}, nil
}

// Signal is Buy when the last close is below the lower band and Sell when
// it is above the upper band.
func (b *BollingerBands) Signal(series *Series) models.Signal {
	if series.Len() == 0 {
		return models.SignalNeutral
	}
	lo, okLo := last(series.Column(ColLowerBand))
	up, okUp := last(series.Column(ColUpperBand))
	if !okLo || !okUp {
		return models.SignalNeutral
	}
	c := series.Candles[series.Len()-1].Close
	switch {
	case c < lo:
		return models.SignalBuy
	case c > up:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}
