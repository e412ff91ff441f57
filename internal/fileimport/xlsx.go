package fileimport

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dhkim/bankfeed/internal/domain"
)

// ParseXLSX parses the first worksheet of an uploaded spreadsheet into
// extracted rows. Header inference and column mapping follow the same
// keyword heuristics as the CSV and HTML paths.
func ParseXLSX(data []byte) ([]domain.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ParseXLSX: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ParseXLSX: read sheet %q: %w", sheets[0], err)
	}

	return rowsFromGrid(grid), nil
}

// Parse dispatches on the uploaded file's extension. ".xls" dispatches
// on content instead, because Korean bank "xls" exports are variously
// real BIFF workbooks, renamed OOXML, HTML tables or plain CSV.
// Unknown extensions are rejected so the caller can report a clean
// client error.
func Parse(filename string, data []byte) ([]domain.Row, error) {
	ext := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(ext, ".csv"):
		return ParseCSV(data)
	case strings.HasSuffix(ext, ".xlsx"):
		return ParseXLSX(data)
	case strings.HasSuffix(ext, ".xls"):
		return ParseXLS(data)
	default:
		return nil, fmt.Errorf("fileimport: unsupported file type: %s", filename)
	}
}
