package indicators

import (
	"errors"
	"math"

	"b3-tracker/internal/models"
)

var (
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrUnknownIndicator is returned for names the engine does not know.
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// nan returns a slice of n NaN values.
func nan(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// closePrices extracts close prices from candles.
func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// rollingMean is the simple moving average over a full window. The first
// period-1 values, and any window touching a NaN, are NaN.
func rollingMean(values []float64, period int) []float64 {
	n := len(values)
	out := nan(n)
	if period <= 0 {
		return out
	}
	for i := period - 1; i < n; i++ {
		var sum float64
		ok := true
		for _, v := range values[i-period+1 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// rollingStd is the rolling sample standard deviation (n-1 denominator).
// Windows shorter than two values are undefined.
func rollingStd(values []float64, period int) []float64 {
	n := len(values)
	out := nan(n)
	if period < 2 {
		return out
	}
	means := rollingMean(values, period)
	for i := period - 1; i < n; i++ {
		if math.IsNaN(means[i]) {
			continue
		}
		var ss float64
		for _, v := range values[i-period+1 : i+1] {
			d := v - means[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period-1))
	}
	return out
}

// ewm is an exponential moving average with alpha = 2/(span+1), seeded
// with the first value and without bias adjustment.
func ewm(values []float64, span int) []float64 {
	n := len(values)
	out := nan(n)
	if n == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	out[0] = values[0]
	for i := 1; i < n; i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// lastTwo returns the final two values of s and whether both are defined.
func lastTwo(s []float64) (prev, cur float64, ok bool) {
	if len(s) < 2 {
		return 0, 0, false
	}
	prev, cur = s[len(s)-2], s[len(s)-1]
	return prev, cur, !math.IsNaN(prev) && !math.IsNaN(cur)
}

// last returns the final value of s and whether it is defined.
func last(s []float64) (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	v := s[len(s)-1]
	return v, !math.IsNaN(v)
}

// crossSignal classifies a crossover of a over b between the last two bars.
func crossSignal(a, b []float64) models.Signal {
	pa, ca, okA := lastTwo(a)
	pb, cb, okB := lastTwo(b)
	if !okA || !okB {
		return models.SignalNeutral
	}
	switch {
	case pa <= pb && ca > cb:
		return models.SignalBuy
	case pa >= pb && ca < cb:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}
