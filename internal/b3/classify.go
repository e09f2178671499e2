package b3

import (
	"strings"
	"unicode"

	"b3-tracker/internal/models"
)

var (
	fiiKeywords       = []string{"FII", "FDO INV IMOB", "FUNDO DE INVESTIMENTO IMOB", "IMOBILIÁRIO", "IMOBILIARIO"}
	etfKeywords       = []string{"ETF", "ÍNDICE", "INDICE"}
	bdrSuffixes       = []string{"34", "35", "32", "39"}
	unitKeywords      = []string{"UNIT", "UNITS"}
	treasuryKeywords  = []string{"TESOURO", "LTN", "NTN", "LFT"}
	fixedIncomeTokens = []string{"DEBENTURE", "CRI", "CRA", "CDB"}
)

// ClassifyAsset assigns an asset type from the ticker and description.
// Rules are evaluated in priority order and the first match wins.
func ClassifyAsset(ticker, description string) models.AssetType {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	d := strings.ToUpper(strings.TrimSpace(description))

	switch {
	case strings.HasSuffix(t, "11") && containsAny(d, fiiKeywords):
		return models.AssetFII
	case strings.HasSuffix(t, "11") && containsAny(d, etfKeywords):
		return models.AssetETF
	case hasAnySuffix(t, bdrSuffixes) || strings.Contains(d, "BDR"):
		return models.AssetBDR
	case strings.HasSuffix(t, "3"):
		return models.AssetStockON
	case strings.HasSuffix(t, "4"):
		return models.AssetStockPN
	case strings.HasSuffix(t, "11") && containsAny(d, unitKeywords):
		return models.AssetUnit
	case isOptionTicker(t):
		return models.AssetOption
	case containsAny(d, treasuryKeywords):
		return models.AssetTreasuryBond
	case containsAny(d, fixedIncomeTokens):
		return models.AssetPrivateFixedIncome
	default:
		return models.AssetOther
	}
}

// InvestmentTypeFor maps an asset type onto the coarse dashboard grouping.
func InvestmentTypeFor(asset models.AssetType, description string) models.InvestmentType {
	switch asset {
	case models.AssetFII:
		return models.InvestmentFII
	case models.AssetStockON, models.AssetStockPN, models.AssetUnit, models.AssetBDR, models.AssetETF:
		return models.InvestmentStocks
	case models.AssetPrivateFixedIncome:
		if strings.Contains(strings.ToUpper(description), "CDB") {
			return models.InvestmentCDB
		}
	}
	return models.InvestmentOther
}

// isOptionTicker matches symbols such as PETRB5: at least five characters
// ending in a digit preceded by a letter.
func isOptionTicker(t string) bool {
	r := []rune(t)
	if len(r) < 5 {
		return false
	}
	return unicode.IsDigit(r[len(r)-1]) && unicode.IsLetter(r[len(r)-2])
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
