// Package scoring rates real-estate funds (FIIs) on their fundamentals,
// ranks funds of the same segment and turns scores into recommendations.
package scoring

import (
	"fmt"
	"math"

	"b3-tracker/internal/config"
	"b3-tracker/internal/models"
)

// Normalisation caps for the quality score.
const (
	dyCap         = 10.0
	dyCAGRCap     = 20.0
	pvpTolerance  = 0.5
	vacancyCap    = 30.0
	volatilityCap = 50.0
	liquidityCap  = 5_000_000.0

	MaxScore = 10.0
)

// Weights are the relative weights of the quality sub-scores. They do not
// need to sum to 1.
type Weights struct {
	DY         float64 `json:"dy"`
	DYCAGR     float64 `json:"dy_cagr"`
	PVP        float64 `json:"pvp"`
	Vacancy    float64 `json:"vacancy"`
	Volatility float64 `json:"volatility"`
	Liquidity  float64 `json:"liquidity"`
}

// DefaultWeights returns the standard weights.
func DefaultWeights() Weights {
	return Weights{
		DY:         0.25,
		DYCAGR:     0.2,
		PVP:        0.15,
		Vacancy:    0.15,
		Volatility: 0.1,
		Liquidity:  0.1,
	}
}

// WeightsFromMap maps a [scoring.weights] table onto Weights. Missing keys
// are zero; unknown keys are an error.
func WeightsFromMap(m map[string]float64) (Weights, error) {
	var w Weights
	for k, v := range m {
		switch k {
		case "dy":
			w.DY = v
		case "dy_cagr":
			w.DYCAGR = v
		case "pvp":
			w.PVP = v
		case "vacancy":
			w.Vacancy = v
		case "volatility":
			w.Volatility = v
		case "liquidity":
			w.Liquidity = v
		default:
			return Weights{}, fmt.Errorf("unknown score weight %q", k)
		}
		if v < 0 || math.IsNaN(v) {
			return Weights{}, fmt.Errorf("score weight %q must be non-negative", k)
		}
	}
	return w, nil
}

// WeightsFromConfig returns the configured weights, falling back to the
// defaults when the table is empty or invalid.
func WeightsFromConfig(c config.ScoringConfig) Weights {
	if len(c.Weights) == 0 {
		return DefaultWeights()
	}
	w, err := WeightsFromMap(c.Weights)
	if err != nil {
		return DefaultWeights()
	}
	return w
}

// Factors are the inputs of the quality score. Percentages are in percent
// units and liquidity is in BRL per day.
type Factors struct {
	DY         float64
	DYCAGR     float64
	PVP        float64
	Vacancy    float64
	Volatility float64
	Liquidity  float64
}

// FactorsFrom extracts the scoring factors from fund metrics.
func FactorsFrom(m models.FIIMetrics) Factors {
	return Factors{
		DY:         m.DividendYield,
		DYCAGR:     m.DYCAGR3Y,
		PVP:        m.PVP,
		Vacancy:    m.Vacancy,
		Volatility: m.Volatility,
		Liquidity:  m.DailyLiquidity,
	}
}

// Normalized holds each factor mapped onto [0, 1] (DY CAGR onto [-1, 1]).
type Normalized struct {
	DY         float64
	DYCAGR     float64
	PVP        float64
	Vacancy    float64
	Volatility float64
	Liquidity  float64
}

// Normalize maps raw factors onto their sub-score ranges.
func Normalize(f Factors) Normalized {
	var n Normalized
	if f.DY > 0 {
		n.DY = math.Min(f.DY/dyCap, 1)
	}
	n.DYCAGR = clamp(f.DYCAGR/dyCAGRCap, -1, 1)
	n.PVP = math.Max(0, 1-math.Abs(1-f.PVP)/pvpTolerance)
	n.Vacancy = math.Max(0, 1-f.Vacancy/vacancyCap)
	n.Volatility = math.Max(0, 1-f.Volatility/volatilityCap)
	if f.Liquidity > 0 {
		n.Liquidity = math.Min(f.Liquidity/liquidityCap, 1)
	}
	return n.sanitize()
}

func (n Normalized) sanitize() Normalized {
	fix := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return v
	}
	n.DY = fix(n.DY)
	n.DYCAGR = fix(n.DYCAGR)
	n.PVP = fix(n.PVP)
	n.Vacancy = fix(n.Vacancy)
	n.Volatility = fix(n.Volatility)
	n.Liquidity = fix(n.Liquidity)
	return n
}

// QualityScore is 10 times the weighted sum of the normalised factors,
// clamped to [0, 10].
func QualityScore(f Factors, w Weights) float64 {
	n := Normalize(f)
	sum := n.DY*w.DY +
		n.DYCAGR*w.DYCAGR +
		n.PVP*w.PVP +
		n.Vacancy*w.Vacancy +
		n.Volatility*w.Volatility +
		n.Liquidity*w.Liquidity

	score := sum * MaxScore
	if math.IsNaN(score) {
		return 0
	}
	return clamp(score, 0, MaxScore)
}

// Score rates a fund with w.
func Score(m models.FIIMetrics, w Weights) models.ScoredFII {
	return models.ScoredFII{
		FIIMetrics: m,
		Score:      QualityScore(FactorsFrom(m), w),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
