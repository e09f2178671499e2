package b3

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"

	"github.com/gocarina/gocsv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// requiredColumns must be present in the export header.
var requiredColumns = []string{"Entrada/Saída", "Data", "Movimentação", "Produto", "Quantidade"}

// NewCSVReader returns a csv.Reader for r with the delimiter detected from
// the header line. Spreadsheet exports saved in pt-BR locales use ';'.
func NewCSVReader(r io.Reader) (*csv.Reader, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(3)
	}

	header, err := br.Peek(br.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}

	cr := csv.NewReader(br)
	if bytes.Count(header, []byte{';'}) > bytes.Count(header, []byte{','}) {
		cr.Comma = ';'
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr, nil
}

// ReadRecords reads every CSV record from r with delimiter detection.
func ReadRecords(r io.Reader) ([][]string, error) {
	cr, err := NewCSVReader(r)
	if err != nil {
		return nil, err
	}
	return cr.ReadAll()
}

// UnmarshalRecords decodes records, header first, into out (a pointer to a
// slice of csv-tagged structs).
func UnmarshalRecords(records [][]string, out interface{}) error {
	return gocsv.UnmarshalCSV(&recordReader{records: records}, out)
}

// LoadExport reads the raw movement export. Only a missing header or a
// missing required column is an error; row-level problems surface from Parse.
func LoadExport(r io.Reader) ([]RawRow, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return nil, apperrors.Wrap(err, "reading export")
	}
	if len(records) == 0 {
		return nil, apperrors.NewDataError("export", "", "empty file", apperrors.ErrNoData)
	}
	if err := checkColumns(records[0]); err != nil {
		return nil, err
	}

	var rows []RawRow
	if err := UnmarshalRecords(records, &rows); err != nil {
		return nil, apperrors.Wrap(err, "decoding export")
	}
	return rows, nil
}

// LoadExportFile opens and reads an export file.
func LoadExportFile(path string) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return LoadExport(f)
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, c := range requiredColumns {
		if !present[c] {
			return apperrors.NewDataError("export", "", fmt.Sprintf("column %q not found", c), apperrors.ErrMissingColumn)
		}
	}
	return nil
}

// recordReader replays already-read records to gocsv.
type recordReader struct {
	records [][]string
	pos     int
}

func (r *recordReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *recordReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}

// ExportRow is the flat CSV shape written by WriteTransactions.
type ExportRow struct {
	Date           string  `csv:"date"`
	Ticker         string  `csv:"ticker"`
	Description    string  `csv:"description"`
	Movement       string  `csv:"movement"`
	MovementType   string  `csv:"movement_type"`
	Direction      string  `csv:"direction"`
	Quantity       float64 `csv:"quantity"`
	UnitPrice      float64 `csv:"unit_price"`
	OperationValue float64 `csv:"operation_value"`
	AssetType      string  `csv:"asset_type"`
	InvestmentType string  `csv:"investment_type"`
	IsTrade        string  `csv:"is_trade"`
}

// WriteTransactions writes the cleaned transaction table as CSV.
func WriteTransactions(w io.Writer, txs []models.Transaction) error {
	rows := make([]ExportRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, ExportRow{
			Date:           tx.DateString(),
			Ticker:         tx.Ticker,
			Description:    tx.Description,
			Movement:       tx.MovementLabel,
			MovementType:   string(tx.MovementType),
			Direction:      string(tx.Direction),
			Quantity:       tx.Quantity,
			UnitPrice:      tx.UnitPrice,
			OperationValue: tx.OperationValue,
			AssetType:      string(tx.AssetType),
			InvestmentType: string(tx.InvestmentType),
			IsTrade:        strconv.FormatBool(tx.IsTrade),
		})
	}
	return gocsv.Marshal(&rows, w)
}
