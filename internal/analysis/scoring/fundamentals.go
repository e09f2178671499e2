package scoring

import (
	"fmt"
	"math"
	"strings"

	"b3-tracker/internal/b3"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
)

type fieldSpec struct {
	key   string
	count bool
	// required fields produce a warning when absent
	required bool
	set      func(m *models.FIIMetrics, v float64)
}

var fieldSpecs = []fieldSpec{
	{key: models.FieldPrice, required: true, set: func(m *models.FIIMetrics, v float64) { m.Price = v }},
	{key: models.FieldDividendYield, required: true, set: func(m *models.FIIMetrics, v float64) { m.DividendYield = v }},
	{key: models.FieldBookValue, set: func(m *models.FIIMetrics, v float64) { m.BookValue = v }},
	{key: models.FieldPVP, required: true, set: func(m *models.FIIMetrics, v float64) { m.PVP = v }},
	{key: models.FieldMonthlyIncome, set: func(m *models.FIIMetrics, v float64) { m.MonthlyIncome = v }},
	{key: models.FieldDailyLiquidity, required: true, set: func(m *models.FIIMetrics, v float64) { m.DailyLiquidity = v }},
	{key: models.FieldIFIXShare, set: func(m *models.FIIMetrics, v float64) { m.IFIXShare = v }},
	{key: models.FieldCash, set: func(m *models.FIIMetrics, v float64) { m.Cash = v }},
	{key: models.FieldNetWorth, set: func(m *models.FIIMetrics, v float64) { m.NetWorth = v }},
	{key: models.FieldQuotaholders, count: true, set: func(m *models.FIIMetrics, v float64) { m.Quotaholders = v }},
	{key: models.FieldQuotas, count: true, set: func(m *models.FIIMetrics, v float64) { m.Quotas = v }},
	{key: models.FieldAppreciation12, set: func(m *models.FIIMetrics, v float64) { m.Appreciation12 = v }},
	{key: models.FieldAppreciationM, set: func(m *models.FIIMetrics, v float64) { m.AppreciationM = v }},
	{key: models.FieldDYCAGR3Y, required: true, set: func(m *models.FIIMetrics, v float64) { m.DYCAGR3Y = v }},
	{key: models.FieldDYCAGR5Y, set: func(m *models.FIIMetrics, v float64) { m.DYCAGR5Y = v }},
	{key: models.FieldVacancy, set: func(m *models.FIIMetrics, v float64) { m.Vacancy = v }},
	{key: models.FieldVolatility, set: func(m *models.FIIMetrics, v float64) { m.Volatility = v }},
}

// MetricsFromRaw parses a flat fundamentals map. Absent or malformed values
// become 0; each substitution of a required field, and every malformed
// value, is reported as a warning.
func MetricsFromRaw(ticker string, raw map[string]string) (models.FIIMetrics, []apperrors.Warning) {
	m := models.FIIMetrics{Ticker: models.NormalizeTicker(ticker)}
	var warnings []apperrors.Warning

	for _, spec := range fieldSpecs {
		s, ok := raw[spec.key]
		if !ok || strings.TrimSpace(s) == "" {
			if spec.required {
				warnings = append(warnings, apperrors.Warning{
					Kind:    apperrors.KindLookup,
					Ticker:  m.Ticker,
					Field:   spec.key,
					Message: "missing, defaulted to 0",
				})
			}
			continue
		}

		var v float64
		if spec.count {
			v, ok = b3.ParseCount(s)
		} else {
			v, ok = b3.ParseNumeric(s)
		}
		if !ok {
			warnings = append(warnings, apperrors.Warning{
				Kind:    apperrors.KindParse,
				Ticker:  m.Ticker,
				Field:   spec.key,
				Message: fmt.Sprintf("unparseable value %q, defaulted to 0", s),
			})
			continue
		}
		spec.set(&m, v)
	}

	if m.PVP == 0 && m.Price > 0 && m.BookValue > 0 {
		m.PVP = m.Price / m.BookValue
	}

	return m, warnings
}

// Field is one labelled line of a fund analysis.
type Field struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Analysis returns the labelled fundamental summary of a scored fund, in
// display order. Values are rounded for presentation.
func Analysis(s models.ScoredFII) []Field {
	return []Field{
		{"Preço Atual (R$)", models.Round2(s.Price)},
		{"P/VP", models.Round2(s.PVP)},
		{"DY (%)", models.Round2(s.DividendYield)},
		{"DY CAGR (3a) (%)", models.Round2(s.DYCAGR3Y)},
		{"Vacância (%)", models.Round2(s.Vacancy)},
		{"Patrimônio Líquido (R$ mi)", models.Round2(s.NetWorth / 1e6)},
		{"Número de Cotistas", s.Quotaholders},
		{"Volatilidade Anual (%)", models.Round2(s.Volatility)},
		{"Liquidez Diária (R$)", models.Round2(s.DailyLiquidity)},
		{"Score Qualidade", math.Round(s.Score*10) / 10},
	}
}
