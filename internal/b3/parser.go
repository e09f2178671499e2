package b3

import (
	"fmt"
	"strings"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
)

// RawRow is one row of the B3 "Movimentação" export as exported by the
// investor area. Every field is kept as text until Parse.
type RawRow struct {
	Direction      string `csv:"Entrada/Saída"`
	Date           string `csv:"Data"`
	Movement       string `csv:"Movimentação"`
	Product        string `csv:"Produto"`
	Institution    string `csv:"Instituição"`
	Quantity       string `csv:"Quantidade"`
	UnitPrice      string `csv:"Preço unitário"`
	OperationValue string `csv:"Valor da Operação"`
}

// ParseResult holds parsed transactions and the defaults applied on the way.
type ParseResult struct {
	Transactions []models.Transaction
	Warnings     []apperrors.Warning
}

// Trades returns the number of rows counted as buys or sells.
func (r ParseResult) Trades() int {
	n := 0
	for _, tx := range r.Transactions {
		if tx.IsTrade {
			n++
		}
	}
	return n
}

// SplitProduct splits "TICKER - description" on the first separator.
func SplitProduct(product string) (ticker, description string) {
	ticker, description, _ = strings.Cut(product, " - ")
	return strings.ToUpper(strings.TrimSpace(ticker)), strings.TrimSpace(description)
}

// ParseDirection normalizes the Entrada/Saída label.
func ParseDirection(label string) (models.Direction, bool) {
	switch fold(capitalize(label)) {
	case "CREDITO":
		return models.DirectionCredit, true
	case "DEBITO":
		return models.DirectionDebit, true
	}
	return "", false
}

// ParseMovement maps a B3 movement label onto a MovementType.
func ParseMovement(label string) models.MovementType {
	switch fold(label) {
	case "COMPRA":
		return models.MovementPurchase
	case "VENDA":
		return models.MovementSale
	case "TRANSFERENCIA - LIQUIDACAO":
		return models.MovementTransferSettlement
	}
	return models.MovementOther
}

// Parse converts raw export rows into classified transactions. It never
// fails: malformed fields are defaulted and reported as warnings, and rows
// without a ticker or direction are kept as non-trade Other rows.
func Parse(rows []RawRow) ParseResult {
	res := ParseResult{Transactions: make([]models.Transaction, 0, len(rows))}
	for i, raw := range rows {
		tx, warns := ParseRow(raw, i+1)
		res.Transactions = append(res.Transactions, tx)
		res.Warnings = append(res.Warnings, warns...)
	}
	return res
}

// ParseRow parses a single export row. rowNum is used in warnings only.
func ParseRow(raw RawRow, rowNum int) (models.Transaction, []apperrors.Warning) {
	var warns []apperrors.Warning
	warn := func(kind apperrors.Kind, field, msg string) {
		warns = append(warns, apperrors.Warning{Kind: kind, Row: rowNum, Field: field, Message: msg})
	}

	ticker, description := SplitProduct(raw.Product)
	tx := models.Transaction{
		Ticker:        ticker,
		Description:   description,
		MovementLabel: strings.TrimSpace(raw.Movement),
		MovementType:  ParseMovement(raw.Movement),
	}

	if d, ok := ParseDate(raw.Date); ok {
		tx.Date = d
	} else {
		warn(apperrors.KindParse, "Data", fmt.Sprintf("invalid date %q", raw.Date))
	}

	tx.Quantity = parseField(raw.Quantity, "Quantidade", warn)
	tx.UnitPrice = parseField(raw.UnitPrice, "Preço unitário", warn)
	tx.OperationValue = parseField(raw.OperationValue, "Valor da Operação", warn)
	if tx.Quantity < 0 {
		warn(apperrors.KindParse, "Quantidade", "negative quantity replaced by its absolute value")
		tx.Quantity = -tx.Quantity
	}
	if tx.UnitPrice < 0 {
		warn(apperrors.KindParse, "Preço unitário", "negative unit price replaced by its absolute value")
		tx.UnitPrice = -tx.UnitPrice
	}
	if tx.OperationValue == 0 && tx.Quantity > 0 && tx.UnitPrice > 0 {
		tx.OperationValue = tx.Quantity * tx.UnitPrice
	}

	dir, dirOK := ParseDirection(raw.Direction)
	if !dirOK {
		warn(apperrors.KindStructural, "Entrada/Saída", fmt.Sprintf("unknown direction %q", raw.Direction))
	}
	if ticker == "" {
		warn(apperrors.KindStructural, "Produto", "missing ticker")
	}

	tx.Direction = dir
	if ticker == "" || !dirOK {
		tx.AssetType = models.AssetOther
		tx.InvestmentType = models.InvestmentOther
		return tx, warns
	}

	// Treasury titles come without a "TICKER - " prefix; classify them by
	// the whole product text.
	keywordText := description
	if keywordText == "" && !strings.Contains(raw.Product, " - ") {
		keywordText = raw.Product
	}
	tx.AssetType = ClassifyAsset(ticker, keywordText)
	tx.InvestmentType = InvestmentTypeFor(tx.AssetType, keywordText)
	tx.IsTrade = tx.MovementType.IsTrade()

	return tx, warns
}

func parseField(s, field string, warn func(apperrors.Kind, string, string)) float64 {
	if isBlank(s) {
		return 0
	}
	v, ok := ParseNumeric(s)
	if !ok {
		warn(apperrors.KindParse, field, fmt.Sprintf("unparseable number %q", s))
	}
	return v
}
