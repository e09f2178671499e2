package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
)

func TestQualityScore_IdealFund(t *testing.T) {
	f := Factors{DY: 12, DYCAGR: 25, PVP: 1, Vacancy: 0, Volatility: 0, Liquidity: 8_000_000}
	got := QualityScore(f, DefaultWeights())
	if math.Abs(got-9.5) > 1e-9 {
		t.Errorf("score = %v, want 9.5", got)
	}
}

func TestQualityScore_Normalisation(t *testing.T) {
	tests := []struct {
		name string
		f    Factors
		want Normalized
	}{
		{
			name: "zero inputs",
			f:    Factors{},
			want: Normalized{Vacancy: 1, Volatility: 1},
		},
		{
			name: "half way",
			f:    Factors{DY: 5, DYCAGR: -10, PVP: 1.25, Vacancy: 15, Volatility: 25, Liquidity: 2_500_000},
			want: Normalized{DY: 0.5, DYCAGR: -0.5, PVP: 0.5, Vacancy: 0.5, Volatility: 0.5, Liquidity: 0.5},
		},
		{
			name: "out of range",
			f:    Factors{DY: -3, DYCAGR: -80, PVP: 3, Vacancy: 90, Volatility: 120, Liquidity: -1},
			want: Normalized{DYCAGR: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.f)
			if math.Abs(got.DY-tt.want.DY) > 1e-9 ||
				math.Abs(got.DYCAGR-tt.want.DYCAGR) > 1e-9 ||
				math.Abs(got.PVP-tt.want.PVP) > 1e-9 ||
				math.Abs(got.Vacancy-tt.want.Vacancy) > 1e-9 ||
				math.Abs(got.Volatility-tt.want.Volatility) > 1e-9 ||
				math.Abs(got.Liquidity-tt.want.Liquidity) > 1e-9 {
				t.Errorf("Normalize = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQualityScore_NegativeGrowthClampsAtZero(t *testing.T) {
	f := Factors{DYCAGR: -40, PVP: 5, Vacancy: 100, Volatility: 100}
	if got := QualityScore(f, DefaultWeights()); got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestWeightsFromMap(t *testing.T) {
	w, err := WeightsFromMap(map[string]float64{"dy": 2, "liquidity": 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if w.DY != 2 || w.Liquidity != 0.5 || w.PVP != 0 {
		t.Errorf("weights = %+v", w)
	}
	if _, err := WeightsFromMap(map[string]float64{"p_vp": 1}); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := WeightsFromMap(map[string]float64{"dy": -1}); err == nil {
		t.Error("expected error for negative weight")
	}
}

func weightsGen(lo, hi float64) gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(lo, hi),
		gen.Float64Range(lo, hi),
		gen.Float64Range(lo, hi),
		gen.Float64Range(lo, hi),
		gen.Float64Range(lo, hi),
		gen.Float64Range(lo, hi),
	).Map(func(v []interface{}) Weights {
		return Weights{
			DY:         v[0].(float64),
			DYCAGR:     v[1].(float64),
			PVP:        v[2].(float64),
			Vacancy:    v[3].(float64),
			Volatility: v[4].(float64),
			Liquidity:  v[5].(float64),
		}
	})
}

func factorsGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-50, 50),
		gen.Float64Range(-200, 200),
		gen.Float64Range(-5, 10),
		gen.Float64Range(-10, 200),
		gen.Float64Range(-10, 200),
		gen.Float64Range(-1e6, 1e9),
	).Map(func(v []interface{}) Factors {
		return Factors{
			DY:         v[0].(float64),
			DYCAGR:     v[1].(float64),
			PVP:        v[2].(float64),
			Vacancy:    v[3].(float64),
			Volatility: v[4].(float64),
			Liquidity:  v[5].(float64),
		}
	})
}

func TestQualityScore_BoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	inRange := func(f Factors, w Weights) bool {
		s := QualityScore(f, w)
		return s >= 0 && s <= MaxScore
	}

	properties.Property("score in [0, 10] with weights summing below 1", prop.ForAll(
		inRange, factorsGen(), weightsGen(0, 0.15),
	))
	properties.Property("score in [0, 10] with weights summing above 1", prop.ForAll(
		inRange, factorsGen(), weightsGen(0.5, 5),
	))

	properties.TestingRun(t)
}

func TestMetricsFromRaw(t *testing.T) {
	raw := map[string]string{
		models.FieldPrice:          "R$ 98,50",
		models.FieldDividendYield:  "9,80%",
		models.FieldBookValue:      "100,00",
		models.FieldPVP:            "0,98",
		models.FieldDailyLiquidity: "3.456.789,00",
		models.FieldNetWorth:       "R$ 1.234.567.890,00",
		models.FieldQuotaholders:   "123.456",
		models.FieldDYCAGR3Y:       "abc",
	}

	m, warnings := MetricsFromRaw("hglg11", raw)
	if m.Ticker != "HGLG11" {
		t.Errorf("ticker = %q", m.Ticker)
	}
	checks := map[string][2]float64{
		"price":        {m.Price, 98.5},
		"dy":           {m.DividendYield, 9.8},
		"pvp":          {m.PVP, 0.98},
		"liquidity":    {m.DailyLiquidity, 3456789},
		"net worth":    {m.NetWorth, 1234567890},
		"quotaholders": {m.Quotaholders, 123456},
		"dy cagr":      {m.DYCAGR3Y, 0},
		"vacancy":      {m.Vacancy, 0},
	}
	for name, c := range checks {
		if math.Abs(c[0]-c[1]) > 1e-6 {
			t.Errorf("%s = %v, want %v", name, c[0], c[1])
		}
	}

	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", warnings)
	}
	if warnings[0].Kind != apperrors.KindParse || warnings[0].Field != models.FieldDYCAGR3Y {
		t.Errorf("warning = %+v", warnings[0])
	}
}

func TestMetricsFromRaw_Empty(t *testing.T) {
	m, warnings := MetricsFromRaw("XPML11", nil)
	if m.Price != 0 || m.PVP != 0 {
		t.Errorf("metrics = %+v", m)
	}
	// price, dy, pvp, liquidity and dy cagr are required
	if len(warnings) != 5 {
		t.Errorf("warnings = %d, want 5", len(warnings))
	}
	for _, w := range warnings {
		if w.Kind != apperrors.KindLookup {
			t.Errorf("kind = %s, want lookup", w.Kind)
		}
	}
}

func TestMetricsFromRaw_DerivesPVP(t *testing.T) {
	m, _ := MetricsFromRaw("ABCD11", map[string]string{
		models.FieldPrice:     "90,00",
		models.FieldBookValue: "100,00",
	})
	if math.Abs(m.PVP-0.9) > 1e-9 {
		t.Errorf("pvp = %v, want 0.9", m.PVP)
	}
}

func TestAverageRanks(t *testing.T) {
	got := averageRanks([]float64{3, 1, 3, 2}, false)
	want := []float64{3.5, 1, 3.5, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ascending ranks = %v, want %v", got, want)
			break
		}
	}

	got = averageRanks([]float64{3, 1, 3, 2}, true)
	want = []float64{1.5, 4, 1.5, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("descending ranks = %v, want %v", got, want)
			break
		}
	}
}

func fund(ticker string, price, pvp, dy, liq, score float64) models.ScoredFII {
	return models.ScoredFII{
		FIIMetrics: models.FIIMetrics{
			Ticker:         ticker,
			Price:          price,
			PVP:            pvp,
			DividendYield:  dy,
			DailyLiquidity: liq,
			NetWorth:       1e9,
			Quotaholders:   1000,
		},
		Score: score,
	}
}

func TestRank(t *testing.T) {
	funds := []models.ScoredFII{
		fund("BBBB11", 110, 1.1, 8, 1e6, 5),
		fund("AAAA11", 90, 0.9, 10, 2e6, 7),
		fund("CCCC11", 100, 1.0, 9, 1.5e6, 6),
	}
	funds[0].Vacancy = 5
	funds[1].Vacancy = 20
	funds[2].Vacancy = 10

	ranked := Rank(funds)
	if len(ranked) != 3 {
		t.Fatalf("rows = %d", len(ranked))
	}
	byTicker := make(map[string]models.RankedFII, len(ranked))
	for _, r := range ranked {
		byTicker[r.Ticker] = r
	}

	tests := []struct {
		ticker string
		column string
		want   float64
	}{
		{"AAAA11", "price", 1},
		{"AAAA11", "pvp", 1},
		{"AAAA11", "dy", 1},
		{"AAAA11", "vacancy", 1}, // highest percentage ranks first
		{"BBBB11", "vacancy", 3},
		{"CCCC11", "vacancy", 2},
		{"AAAA11", "liquidity", 3},
		{"BBBB11", "liquidity", 1},
		{"AAAA11", "score", 3},
		{"BBBB11", "score", 1},
		{"AAAA11", "dy_cagr", 2}, // tied at 0
		{"AAAA11", "volatility", 2},
	}
	for _, tt := range tests {
		if got := byTicker[tt.ticker].Ranks[tt.column]; got != tt.want {
			t.Errorf("%s rank %s = %v, want %v", tt.ticker, tt.column, got, tt.want)
		}
	}
	if _, ok := byTicker["AAAA11"].Ranks["net_worth"]; ok {
		t.Error("net worth must not be ranked")
	}

	totals := map[string]float64{
		"BBBB11": (3 + 3 + 3 + 2 + 3 + 2 + 1 + 1) / 8.0,
		"CCCC11": 2,
		"AAAA11": (1 + 1 + 1 + 2 + 1 + 2 + 3 + 3) / 8.0,
	}
	order := []string{"BBBB11", "CCCC11", "AAAA11"}
	for i, want := range order {
		if ranked[i].Ticker != want {
			t.Errorf("row %d = %s, want %s", i, ranked[i].Ticker, want)
		}
		if ranked[i].Position != i+1 {
			t.Errorf("row %d position = %d", i, ranked[i].Position)
		}
		if math.Abs(ranked[i].ScoreTotal-totals[want]) > 1e-9 {
			t.Errorf("%s score total = %v, want %v", want, ranked[i].ScoreTotal, totals[want])
		}
	}
}

func TestRank_TotalTieBreaksOnTicker(t *testing.T) {
	a := fund("ZZZZ11", 100, 1, 9, 1e6, 6)
	b := fund("AAAA11", 100, 1, 9, 1e6, 6)
	ranked := Rank([]models.ScoredFII{a, b})
	if ranked[0].Ticker != "AAAA11" || ranked[1].Ticker != "ZZZZ11" {
		t.Errorf("order = %s, %s", ranked[0].Ticker, ranked[1].Ticker)
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Errorf("Rank(nil) = %v", got)
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		points float64
		want   models.Recommendation
	}{
		{100, models.RecommendationStrongBuy},
		{80.5, models.RecommendationStrongBuy},
		{80, models.RecommendationBuy},
		{61, models.RecommendationBuy},
		{60, models.RecommendationNeutral},
		{40, models.RecommendationSell},
		{20.1, models.RecommendationSell},
		{20, models.RecommendationStrongSell},
		{0, models.RecommendationStrongSell},
	}
	for _, tt := range tests {
		if got := Recommend(tt.points); got != tt.want {
			t.Errorf("Recommend(%v) = %s, want %s", tt.points, got, tt.want)
		}
	}
}

func TestPoints(t *testing.T) {
	s := fund("AAAA11", 100, 0.5, 10, 0, 8)
	// 10*0.5 + (1/0.5)*0.3 + 8
	if got := Points(s, DefaultDecisionWeights()); math.Abs(got-13.6) > 1e-9 {
		t.Errorf("points = %v, want 13.6", got)
	}

	s.PVP = 0
	if got := Points(s, DefaultDecisionWeights()); math.Abs(got-13) > 1e-9 {
		t.Errorf("points without pvp = %v, want 13", got)
	}

	s.DividendYield = 1000
	if got := Points(s, DefaultDecisionWeights()); got != 100 {
		t.Errorf("points = %v, want clamp at 100", got)
	}
}

type fakeSource struct {
	data      map[string]map[string]string
	companies []models.SectorCompany
}

func (f *fakeSource) Fundamentals(_ context.Context, ticker string) (map[string]string, error) {
	raw, ok := f.data[ticker]
	if !ok {
		return nil, apperrors.NewLookupError("fake", ticker, apperrors.ErrTickerNotFound)
	}
	return raw, nil
}

func (f *fakeSource) SectorCompanies(_ context.Context, _ int) ([]models.SectorCompany, error) {
	return f.companies, nil
}

func rawFund(price, pvp, dy string) map[string]string {
	return map[string]string{
		models.FieldPrice:          price,
		models.FieldPVP:            pvp,
		models.FieldDividendYield:  dy,
		models.FieldDailyLiquidity: "1.000.000,00",
		models.FieldDYCAGR3Y:       "5,0",
	}
}

func TestAnalyzer_RankSegment(t *testing.T) {
	src := &fakeSource{
		data: map[string]map[string]string{
			"AAAA11": rawFund("90,00", "0,90", "10,0"),
			"BBBB11": rawFund("110,00", "1,10", "8,0"),
		},
		companies: []models.SectorCompany{
			{Ticker: "bbbb11", CompanyName: "Fundo B"},
			{Ticker: "GONE11", CompanyName: "Delisted"},
			{Ticker: "AAAA11", CompanyName: "Fundo A"},
		},
	}

	a := NewAnalyzer(src, WithWorkers(2))
	ranking, err := a.RankSegment(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranking.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(ranking.Rows))
	}
	// AAAA11 wins price, P/VP and DY but the ascending score rank favours
	// BBBB11, whose mean rank is higher.
	if ranking.Rows[0].Ticker != "BBBB11" || ranking.Rows[0].CompanyName != "Fundo B" {
		t.Errorf("first row = %+v", ranking.Rows[0])
	}
	if len(ranking.Excluded) != 1 || ranking.Excluded[0] != "GONE11" {
		t.Errorf("excluded = %v", ranking.Excluded)
	}
	if ranking.SegmentID != 7 {
		t.Errorf("segment = %d", ranking.SegmentID)
	}
}

func TestAnalyzer_RankSegmentEmpty(t *testing.T) {
	a := NewAnalyzer(&fakeSource{})
	_, err := a.RankSegment(context.Background(), 1)
	if !errors.Is(err, apperrors.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestAnalyzer_Monitor(t *testing.T) {
	src := &fakeSource{data: map[string]map[string]string{
		"LOWW11": rawFund("100,00", "1,50", "2,0"),
		"HIGH11": rawFund("100,00", "1,00", "12,0"),
	}}
	a := NewAnalyzer(src)
	panel, err := a.Monitor(context.Background(), []string{"LOWW11", "MISS11", "HIGH11"})
	if err != nil {
		t.Fatal(err)
	}
	if len(panel.Decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(panel.Decisions))
	}
	if panel.Decisions[0].Ticker != "HIGH11" {
		t.Errorf("first = %s, want HIGH11", panel.Decisions[0].Ticker)
	}
	found := false
	for _, w := range panel.Warnings {
		if w.Ticker == "MISS11" && w.Kind == apperrors.KindLookup {
			found = true
		}
	}
	if !found {
		t.Errorf("missing lookup warning for MISS11: %v", panel.Warnings)
	}
}

func TestAnalyzer_Report(t *testing.T) {
	src := &fakeSource{data: map[string]map[string]string{
		"HGLG11": rawFund("160,00", "1,00", "9,0"),
	}}
	a := NewAnalyzer(src, WithWeights(DefaultWeights()))
	r, err := a.Report(context.Background(), "hglg11")
	if err != nil {
		t.Fatal(err)
	}
	if r.Fund.Ticker != "HGLG11" || r.Fund.Score <= 0 {
		t.Errorf("report = %+v", r.Fund)
	}
	if len(r.Analysis) == 0 || r.Analysis[0].Value != 160 {
		t.Errorf("analysis = %+v", r.Analysis)
	}

	if _, err := a.Report(context.Background(), "NONE11"); !errors.Is(err, apperrors.ErrTickerNotFound) {
		t.Errorf("err = %v, want ErrTickerNotFound", err)
	}
}
