package ingest

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"scpulse/pkg/contracts/domain"
)

// WorkbookData holds the raw batches decoded from one workbook. Rows
// are untyped; everything flows through the validator afterwards.
type WorkbookData struct {
	Orders    []domain.RawRecord
	Returns   []domain.RawRecord
	People    []domain.RawRecord
	Inventory []domain.RawRecord
}

// WorkbookReader decodes supply-chain workbooks into raw record
// batches. Sheet and header names are matched tolerantly because the
// source files come from several exporters with drifting labels.
type WorkbookReader struct {
	logger *slog.Logger
}

// NewWorkbookReader creates a workbook reader.
func NewWorkbookReader(logger *slog.Logger) *WorkbookReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookReader{logger: logger.With("component", "workbook_reader")}
}

// Read opens the workbook and extracts every known sheet. Sheets that
// are absent yield empty batches; only an unreadable file is an error.
func (r *WorkbookReader) Read(path string) (*WorkbookData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	data := &WorkbookData{}
	sheets := f.GetSheetList()

	for _, target := range []struct {
		name string
		dest *[]domain.RawRecord
	}{
		{"orders", &data.Orders},
		{"returns", &data.Returns},
		{"people", &data.People},
		{"inventory", &data.Inventory},
	} {
		sheetName, found := findSheet(sheets, target.name)
		if !found {
			r.logger.Warn("sheet not found in workbook", "sheet", target.name, "path", path)
			continue
		}
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		records := rowsToRecords(rows)
		r.logger.Info("sheet loaded",
			"sheet", sheetName,
			"rows", len(records),
		)
		*target.dest = records
	}

	return data, nil
}

// findSheet matches a sheet by normalized name, tolerating case and
// padding differences.
func findSheet(sheets []string, want string) (string, bool) {
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), want) {
			return s, true
		}
	}
	return "", false
}

// rowsToRecords maps a sheet's rows to raw records keyed by canonical
// field name. The first non-empty row is the header.
func rowsToRecords(rows [][]string) []domain.RawRecord {
	headerRow := -1
	var fields []string
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		fields = make([]string, len(row))
		for j, cell := range row {
			fields[j] = canonicalField(cell)
		}
		headerRow = i
		break
	}
	if headerRow < 0 {
		return nil
	}

	var records []domain.RawRecord
	for _, row := range rows[headerRow+1:] {
		if isBlankRow(row) {
			continue
		}
		record := make(domain.RawRecord, len(fields))
		for j, field := range fields {
			if field == "" || j >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			record[field] = cell
		}
		if len(record) > 0 {
			records = append(records, record)
		}
	}
	return records
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// headerAliases maps normalized spreadsheet headers that deviate from
// the canonical field names.
var headerAliases = map[string]string{
	"person":         "person_id",
	"sales":          "unit_price",
	"return_reason":  "reason",
	"qty":            "quantity",
	"qty_returned":   "quantity_returned",
	"returned_qty":   "quantity_returned",
	"on_hand":        "on_hand_quantity",
	"units_sold":     "units_sold_in_period",
	"units_received": "units_received_in_period",
}

// canonicalField lowercases a header and collapses punctuation to
// underscores, then applies known aliases.
func canonicalField(header string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	field := strings.TrimSuffix(b.String(), "_")
	if alias, ok := headerAliases[field]; ok {
		return alias
	}
	return field
}
