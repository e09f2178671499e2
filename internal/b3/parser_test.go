package b3

import (
	"bytes"
	"strings"
	"testing"
	"time"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"4,84", 4.84, true},
		{"abc", 0, false},
		{"R$ 1.000,00", 1000, true},
		{"R$ 12,50", 12.5, true},
		{"1,000", 1.0, true},
		{"1.234.567", 1234567, true},
		{"1000", 1000, true},
		{"12.5", 12.5, true},
		{"1,234.56", 1.23456, true},
		{"8,5%", 8.5, true},
		{"-3,20", -3.2, true},
		{"", 0, false},
		{"   ", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumeric(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseNumeric(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if got != tt.want {
			t.Errorf("ParseNumeric(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	if got, ok := ParseCount("12.345"); !ok || got != 12345 {
		t.Errorf("ParseCount(12.345) = %v, %v", got, ok)
	}
	if _, ok := ParseCount("n/a"); ok {
		t.Error("ParseCount(n/a) should fail")
	}
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate(" 05/03/2024 ")
	if !ok || !d.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate = %v, %v", d, ok)
	}
	if d, ok := ParseDate("2024-03-05"); ok || !d.IsZero() {
		t.Errorf("ParseDate of ISO date should fail, got %v", d)
	}
}

func TestClassifyAsset(t *testing.T) {
	tests := []struct {
		ticker, desc string
		want         models.AssetType
	}{
		{"HGLG11", "CSHG LOGISTICA FDO INV IMOB - FII", models.AssetFII},
		{"MXRF11", "MAXI RENDA FUNDO DE INVESTIMENTO IMOBILIÁRIO", models.AssetFII},
		{"BOVA11", "ISHARES BOVA ETF", models.AssetETF},
		{"IVVB11", "ISHARES S&P 500 ÍNDICE", models.AssetETF},
		{"XXXX11", "FII ETF HIBRIDO", models.AssetFII},
		{"AAPL34", "APPLE INC", models.AssetBDR},
		{"ROXO34", "NU HOLDINGS", models.AssetBDR},
		{"ABCD11", "DRN BDR NIVEL I", models.AssetBDR},
		{"PETR3", "PETROLEO BRASILEIRO S.A. PETROBRAS", models.AssetStockON},
		{"PETR4", "PETROLEO BRASILEIRO S.A. PETROBRAS", models.AssetStockPN},
		{"TAEE11", "TAESA UNIT", models.AssetUnit},
		{"KLBN11", "KLABIN S.A. UNITS", models.AssetUnit},
		{"PETRB5", "PETR OPCAO", models.AssetOption},
		{"SELIC", "TESOURO SELIC 2029", models.AssetTreasuryBond},
		{"NTNB", "NTN-B 2035", models.AssetTreasuryBond},
		{"CDB12", "CDB BANCO XYZ", models.AssetPrivateFixedIncome},
		{"DEB", "DEBENTURE ABC", models.AssetPrivateFixedIncome},
		{"SANB11", "BANCO SANTANDER", models.AssetOther},
		{"", "", models.AssetOther},
	}

	for _, tt := range tests {
		if got := ClassifyAsset(tt.ticker, tt.desc); got != tt.want {
			t.Errorf("ClassifyAsset(%q, %q) = %s, want %s", tt.ticker, tt.desc, got, tt.want)
		}
	}
}

// Property: a ticker ending in 11 whose description mentions an FII keyword
// classifies as FII no matter which lower-priority keywords also appear.
func TestClassifyAsset_FIIPriorityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("FII keyword wins over lower rules", prop.ForAll(
		func(prefix string, fiiIdx, otherIdx int) bool {
			others := append(append(append([]string{}, etfKeywords...), unitKeywords...), "BDR", "TESOURO", "CDB")
			desc := others[otherIdx%len(others)] + " " + fiiKeywords[fiiIdx%len(fiiKeywords)]
			return ClassifyAsset(prefix+"11", desc) == models.AssetFII
		},
		gen.AlphaString().Map(func(s string) string {
			if len(s) > 4 {
				s = s[:4]
			}
			return strings.ToUpper(s)
		}),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestInvestmentTypeFor(t *testing.T) {
	tests := []struct {
		asset models.AssetType
		desc  string
		want  models.InvestmentType
	}{
		{models.AssetFII, "", models.InvestmentFII},
		{models.AssetStockON, "", models.InvestmentStocks},
		{models.AssetUnit, "", models.InvestmentStocks},
		{models.AssetBDR, "", models.InvestmentStocks},
		{models.AssetETF, "", models.InvestmentStocks},
		{models.AssetPrivateFixedIncome, "CDB BANCO INTER", models.InvestmentCDB},
		{models.AssetPrivateFixedIncome, "DEBENTURE VALE", models.InvestmentOther},
		{models.AssetTreasuryBond, "TESOURO SELIC", models.InvestmentOther},
		{models.AssetOption, "", models.InvestmentOther},
	}
	for _, tt := range tests {
		if got := InvestmentTypeFor(tt.asset, tt.desc); got != tt.want {
			t.Errorf("InvestmentTypeFor(%s, %q) = %s, want %s", tt.asset, tt.desc, got, tt.want)
		}
	}
}

func TestParseRow(t *testing.T) {
	raw := RawRow{
		Direction:      " crédito ",
		Date:           "10/01/2024",
		Movement:       "Transferência - Liquidação",
		Product:        "hglg11 - CSHG LOGISTICA FDO INV IMOB - FII",
		Quantity:       "10",
		UnitPrice:      "R$ 160,50",
		OperationValue: "-",
	}

	tx, warns := ParseRow(raw, 1)
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if tx.Ticker != "HGLG11" {
		t.Errorf("Ticker = %q", tx.Ticker)
	}
	if tx.Description != "CSHG LOGISTICA FDO INV IMOB - FII" {
		t.Errorf("Description = %q", tx.Description)
	}
	if tx.Direction != models.DirectionCredit {
		t.Errorf("Direction = %q", tx.Direction)
	}
	if tx.MovementType != models.MovementTransferSettlement || !tx.IsTrade {
		t.Errorf("MovementType = %s, IsTrade = %v", tx.MovementType, tx.IsTrade)
	}
	if tx.AssetType != models.AssetFII || tx.InvestmentType != models.InvestmentFII {
		t.Errorf("AssetType = %s, InvestmentType = %s", tx.AssetType, tx.InvestmentType)
	}
	if tx.OperationValue != 1605 {
		t.Errorf("OperationValue = %v, want derived 1605", tx.OperationValue)
	}
}

func TestParseRow_NonTradeMovements(t *testing.T) {
	for _, label := range []string{"Leilão de Fração", "Resgate", "Rendimento", "Dividendo", "Desdobro"} {
		tx, _ := ParseRow(RawRow{
			Direction: "Credito",
			Date:      "10/01/2024",
			Movement:  label,
			Product:   "PETR4 - PETROBRAS",
			Quantity:  "1",
		}, 1)
		if tx.IsTrade {
			t.Errorf("%q should not count as a trade", label)
		}
		if tx.AssetType != models.AssetStockPN {
			t.Errorf("%q: AssetType = %s", label, tx.AssetType)
		}
	}
}

func TestParseRow_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawRow
		wantKind apperrors.Kind
	}{
		{
			name:     "missing ticker",
			raw:      RawRow{Direction: "Credito", Date: "01/02/2024", Movement: "Compra", Product: " - something", Quantity: "1"},
			wantKind: apperrors.KindStructural,
		},
		{
			name:     "unknown direction",
			raw:      RawRow{Direction: "Sideways", Date: "01/02/2024", Movement: "Compra", Product: "PETR4 - PETROBRAS", Quantity: "1"},
			wantKind: apperrors.KindStructural,
		},
		{
			name:     "bad date and number",
			raw:      RawRow{Direction: "Debito", Date: "31/02/2024", Movement: "Venda", Product: "PETR4 - PETROBRAS", Quantity: "x"},
			wantKind: apperrors.KindParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, warns := ParseRow(tt.raw, 7)
			if len(warns) == 0 {
				t.Fatal("expected warnings")
			}
			if warns[0].Kind != tt.wantKind || warns[0].Row != 7 {
				t.Errorf("warning = %+v", warns[0])
			}
			if tt.wantKind == apperrors.KindStructural && (tx.IsTrade || tx.AssetType != models.AssetOther) {
				t.Errorf("malformed row should be Other/non-trade, got %s/%v", tx.AssetType, tx.IsTrade)
			}
		})
	}
}

func TestLoadExport_Semicolon(t *testing.T) {
	data := "\xEF\xBB\xBFEntrada/Saída;Data;Movimentação;Produto;Instituição;Quantidade;Preço unitário;Valor da Operação\n" +
		"Credito;15/03/2023;Compra;PETR4 - PETROLEO BRASILEIRO S.A. PETROBRAS;XP;100;\"28,50\";\"2.850,00\"\n" +
		"Debito;20/04/2023;Venda;PETR4 - PETROLEO BRASILEIRO S.A. PETROBRAS;XP;40;\"30,00\";\"1.200,00\"\n"

	rows, err := LoadExport(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	res := Parse(rows)
	if res.Trades() != 2 {
		t.Errorf("Trades = %d", res.Trades())
	}
	if got := res.Transactions[0].OperationValue; got != 2850 {
		t.Errorf("OperationValue = %v", got)
	}
	if res.Transactions[1].Direction != models.DirectionDebit {
		t.Errorf("Direction = %s", res.Transactions[1].Direction)
	}
}

func TestLoadExport_MissingColumn(t *testing.T) {
	_, err := LoadExport(strings.NewReader("Data,Produto\n01/01/2024,PETR4 - X\n"))
	if !apperrors.Is(err, apperrors.ErrMissingColumn) {
		t.Errorf("err = %v, want ErrMissingColumn", err)
	}

	_, err = LoadExport(strings.NewReader(""))
	if !apperrors.Is(err, apperrors.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestWriteTransactions(t *testing.T) {
	txs := []models.Transaction{{
		Date:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Ticker:       "PETR4",
		MovementType: models.MovementPurchase,
		Direction:    models.DirectionCredit,
		Quantity:     10,
		UnitPrice:    30,
		AssetType:    models.AssetStockPN,
		IsTrade:      true,
	}}

	var buf bytes.Buffer
	if err := WriteTransactions(&buf, txs); err != nil {
		t.Fatalf("WriteTransactions: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "date,ticker,") {
		t.Errorf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "2024-01-02,PETR4,") {
		t.Errorf("row missing: %q", out)
	}
}
