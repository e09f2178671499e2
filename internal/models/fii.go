package models

// FIIMetrics are the parsed fundamentals of a real-estate fund.
// Percentages are in percent units (8.5 means 8.5%).
type FIIMetrics struct {
	Ticker         string  `json:"ticker"`
	Price          float64 `json:"price"`
	DividendYield  float64 `json:"dividend_yield"`
	BookValue      float64 `json:"book_value_per_quota"`
	PVP            float64 `json:"pvp"`
	MonthlyIncome  float64 `json:"monthly_income_24m"`
	DailyLiquidity float64 `json:"daily_liquidity"`
	IFIXShare      float64 `json:"ifix_share"`
	Cash           float64 `json:"cash"`
	NetWorth       float64 `json:"net_worth"`
	Quotaholders   float64 `json:"quotaholders"`
	Quotas         float64 `json:"quotas"`
	Appreciation12 float64 `json:"appreciation_12m"`
	AppreciationM  float64 `json:"appreciation_month"`
	DYCAGR3Y       float64 `json:"dy_cagr_3y"`
	DYCAGR5Y       float64 `json:"dy_cagr_5y"`
	Vacancy        float64 `json:"vacancy"`
	Volatility     float64 `json:"volatility"`
}

// ScoredFII is a fund with its quality score.
type ScoredFII struct {
	FIIMetrics
	Score float64 `json:"score"`
}

// RankedFII is one row of a sector ranking. Ranks are 1 for best.
type RankedFII struct {
	ScoredFII
	CompanyName string             `json:"company_name,omitempty"`
	Ranks       map[string]float64 `json:"ranks"`
	ScoreTotal  float64            `json:"score_total"`
	Position    int                `json:"position"`
}

// SectorCompany is one fund listed under a sector segment.
type SectorCompany struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
}

// Keys of the flat fundamentals map returned by the fundamentals provider.
const (
	FieldPrice          = "valor_atual"
	FieldDividendYield  = "dividend_yield_12m"
	FieldBookValue      = "valor_patrimonial_p_cota"
	FieldPVP            = "pvp"
	FieldMonthlyIncome  = "rendimento_mensal_medio_24m"
	FieldDailyLiquidity = "liquidez_media_diaria"
	FieldIFIXShare      = "participacao_ifix"
	FieldCash           = "valor_em_caixa"
	FieldNetWorth       = "patrimonio_total"
	FieldQuotaholders   = "numero_cotistas"
	FieldQuotas         = "numero_cotas"
	FieldAppreciation12 = "valorizacao_12m"
	FieldAppreciationM  = "valorizacao_mensal"
	FieldDYCAGR3Y       = "dy_cagr_3y"
	FieldDYCAGR5Y       = "dy_cagr_5y"
	FieldVacancy        = "vacancia"
	FieldVolatility     = "volatilidade"
)
