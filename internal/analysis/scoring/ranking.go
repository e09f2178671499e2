package scoring

import (
	"sort"

	"b3-tracker/internal/models"
)

// RankColumn is a metric that takes part in sector ranking. Descending
// columns give rank 1 to the largest value, the others to the smallest.
type RankColumn struct {
	Name       string
	Descending bool
	value      func(s models.ScoredFII) float64
}

// RankColumns are ranked for every fund of a segment. Percentage and DY
// columns rank descending, plain values (price, P/VP, liquidity, score)
// ascending. Quotaholder count and net worth are descriptive and left out.
var RankColumns = []RankColumn{
	{Name: "price", value: func(s models.ScoredFII) float64 { return s.Price }},
	{Name: "pvp", value: func(s models.ScoredFII) float64 { return s.PVP }},
	{Name: "dy", Descending: true, value: func(s models.ScoredFII) float64 { return s.DividendYield }},
	{Name: "dy_cagr", Descending: true, value: func(s models.ScoredFII) float64 { return s.DYCAGR3Y }},
	{Name: "vacancy", Descending: true, value: func(s models.ScoredFII) float64 { return s.Vacancy }},
	{Name: "volatility", Descending: true, value: func(s models.ScoredFII) float64 { return s.Volatility }},
	{Name: "liquidity", value: func(s models.ScoredFII) float64 { return s.DailyLiquidity }},
	{Name: "score", value: func(s models.ScoredFII) float64 { return s.Score }},
}

// Rank ranks funds of one segment on every RankColumn (ties share the
// average rank), averages the ranks into ScoreTotal and orders the result
// by ScoreTotal descending, then ticker.
func Rank(funds []models.ScoredFII) []models.RankedFII {
	out := make([]models.RankedFII, len(funds))
	for i, f := range funds {
		out[i] = models.RankedFII{ScoredFII: f, Ranks: make(map[string]float64, len(RankColumns))}
	}
	if len(out) == 0 {
		return out
	}

	for _, col := range RankColumns {
		values := make([]float64, len(out))
		for i := range out {
			values[i] = col.value(out[i].ScoredFII)
		}
		ranks := averageRanks(values, col.Descending)
		for i := range out {
			out[i].Ranks[col.Name] = ranks[i]
		}
	}

	for i := range out {
		var sum float64
		for _, r := range out[i].Ranks {
			sum += r
		}
		out[i].ScoreTotal = sum / float64(len(out[i].Ranks))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ScoreTotal != out[j].ScoreTotal {
			return out[i].ScoreTotal > out[j].ScoreTotal
		}
		return out[i].Ticker < out[j].Ticker
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Top returns the first n rows of a ranking.
func Top(ranked []models.RankedFII, n int) []models.RankedFII {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// averageRanks assigns 1-based ranks to values, giving tied values the mean
// of the ranks they span.
func averageRanks(values []float64, descending bool) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if descending {
			return values[idx[a]] > values[idx[b]]
		}
		return values[idx[a]] < values[idx[b]]
	})

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
