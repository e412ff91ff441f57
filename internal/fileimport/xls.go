package fileimport

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"

	"github.com/dhkim/bankfeed/internal/domain"
	"github.com/dhkim/bankfeed/internal/extract"
)

// xlsMaxRows bounds how many worksheet rows the legacy reader walks.
const xlsMaxRows = 10000

var (
	// zipSignature opens every OOXML workbook.
	zipSignature = []byte{0x50, 0x4B, 0x03, 0x04}
	// cfbSignature opens the compound file container of legacy BIFF
	// workbooks.
	cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ParseXLS parses a file uploaded under the ".xls" extension. The
// extension is not trusted: the content decides whether this is a real
// legacy workbook, a renamed OOXML workbook, an HTML table or CSV.
func ParseXLS(data []byte) ([]domain.Row, error) {
	switch {
	case bytes.HasPrefix(data, zipSignature):
		return ParseXLSX(data)
	case bytes.HasPrefix(data, cfbSignature):
		return parseBIFF(data)
	case looksLikeHTML(data):
		return extract.FromHTML(string(decodeKorean(data)))
	default:
		return ParseCSV(data)
	}
}

// parseBIFF reads the first worksheet of a legacy BIFF workbook into
// extracted rows via the shared header heuristics.
func parseBIFF(data []byte) ([]domain.Row, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-16")
	if err != nil {
		return nil, fmt.Errorf("parseBIFF: open workbook: %w", err)
	}
	return rowsFromGrid(wb.ReadAllCells(xlsMaxRows)), nil
}

// looksLikeHTML reports whether the payload opens with markup once
// leading whitespace and the BOM are skipped.
func looksLikeHTML(data []byte) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("<"))
}
