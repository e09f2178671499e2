package indicators

import (
	"fmt"
	"math"

	"b3-tracker/internal/models"
)

// RSI calculates the Relative Strength Index from rolling simple averages
// of gains and losses.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int, oversold, overbought float64) *RSI {
	return &RSI{period: period, oversold: oversold, overbought: overbought}
}

func (r *RSI) Name() string {
	return NameRSI
}

func (r *RSI) String() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

func (r *RSI) Columns() []string {
	return []string{ColRSI}
}

func (r *RSI) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}

	n := len(candles)
	closes := closePrices(candles)

	// The first bar has no change and counts as zero gain and zero loss.
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := rollingMean(gains, r.period)
	avgLoss := rollingMean(losses, r.period)

	result := nan(n)
	for i := range result {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
		case l == 0 && g == 0:
			// flat window: undefined
		case l == 0:
			result[i] = 100
		default:
			rs := g / l
			result[i] = 100 - (100 / (1 + rs))
		}
	}

	return map[string][]float64{ColRSI: result}, nil
}

// Signal is Buy below the oversold threshold and Sell above the overbought
// threshold, judged on the last bar only.
func (r *RSI) Signal(series *Series) models.Signal {
	v, ok := last(series.Column(ColRSI))
	if !ok {
		return models.SignalNeutral
	}
	switch {
	case v < r.oversold:
		return models.SignalBuy
	case v > r.overbought:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}
