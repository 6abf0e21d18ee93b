package intake

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetOptions selects the worksheet holding claims.
type SheetOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadClaimSheet reads an XLSX worksheet whose first row names the claim
// fields. Each following non-empty row becomes one raw claim. Blank cells are
// left out so they read as missing fields.
func ReadClaimSheet(path string, opts SheetOptions) ([]map[string]any, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "intake: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rowsToClaims(rows)
}

// ReadClaimCSV reads a CSV table with a header row of claim field names.
func ReadClaimCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "intake: read csv")
	}
	return rowsToClaims(records)
}

func rowsToClaims(rows [][]string) ([]map[string]any, error) {
	if len(rows) == 0 {
		return nil, eris.New("intake: sheet has no header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var claims []map[string]any
	for _, row := range rows[1:] {
		raw := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				raw[header[i]] = v
			}
		}
		if len(raw) == 0 {
			continue
		}
		claims = append(claims, raw)
	}
	return claims, nil
}

func getSheet(f *xlsx.File, opts SheetOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("intake: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("intake: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
