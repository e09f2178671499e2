package models

// Recommendation is the outcome of the FII monitoring decision model.
type Recommendation string

const (
	RecommendationStrongBuy  Recommendation = "STRONG_BUY"
	RecommendationBuy        Recommendation = "BUY"
	RecommendationNeutral    Recommendation = "NEUTRAL"
	RecommendationSell       Recommendation = "SELL"
	RecommendationStrongSell Recommendation = "STRONG_SELL"
)

// Label returns the dashboard label for a recommendation.
func (r Recommendation) Label() string {
	switch r {
	case RecommendationStrongBuy:
		return "COMPRA FORTE"
	case RecommendationBuy:
		return "COMPRA"
	case RecommendationNeutral:
		return "NEUTRO"
	case RecommendationSell:
		return "VENDA"
	case RecommendationStrongSell:
		return "VENDA FORTE"
	}
	return string(r)
}

// Decision is one row of the FII monitoring panel.
type Decision struct {
	Ticker         string         `json:"ticker"`
	Price          float64        `json:"price"`
	DividendYield  float64        `json:"dividend_yield"`
	PVP            float64        `json:"pvp"`
	Score          float64        `json:"score"`
	Points         float64        `json:"points"`
	Recommendation Recommendation `json:"recommendation"`
}
