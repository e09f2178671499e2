package scoring

import (
	"sort"

	"b3-tracker/internal/config"
	"b3-tracker/internal/models"
)

// DecisionWeights weigh the inputs of the monitoring decision model.
type DecisionWeights struct {
	DY    float64
	PVP   float64
	Score float64
}

// DefaultDecisionWeights returns the standard decision weights.
func DefaultDecisionWeights() DecisionWeights {
	return DecisionWeights{DY: 0.5, PVP: 0.3, Score: 1.0}
}

// DecisionWeightsFromConfig maps the [scoring] decision weights.
func DecisionWeightsFromConfig(c config.ScoringConfig) DecisionWeights {
	return DecisionWeights{DY: c.DecisionDY, PVP: c.DecisionPVP, Score: c.DecisionScore}
}

// Points combines DY, inverse P/VP and quality score into [0, 100].
func Points(s models.ScoredFII, w DecisionWeights) float64 {
	points := s.DividendYield * w.DY
	if s.PVP > 0 {
		points += (1 / s.PVP) * w.PVP
	}
	points += s.Score * w.Score
	return clamp(points, 0, 100)
}

// Recommend maps points onto a recommendation.
func Recommend(points float64) models.Recommendation {
	switch {
	case points > 80:
		return models.RecommendationStrongBuy
	case points > 60:
		return models.RecommendationBuy
	case points > 40:
		return models.RecommendationNeutral
	case points > 20:
		return models.RecommendationSell
	default:
		return models.RecommendationStrongSell
	}
}

// Decide builds the monitoring row for a scored fund.
func Decide(s models.ScoredFII, w DecisionWeights) models.Decision {
	points := Points(s, w)
	return models.Decision{
		Ticker:         s.Ticker,
		Price:          s.Price,
		DividendYield:  s.DividendYield,
		PVP:            s.PVP,
		Score:          s.Score,
		Points:         points,
		Recommendation: Recommend(points),
	}
}

// SortDecisions orders decisions by points descending, then ticker.
func SortDecisions(ds []models.Decision) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Points != ds[j].Points {
			return ds[i].Points > ds[j].Points
		}
		return ds[i].Ticker < ds[j].Ticker
	})
}
