package fileimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/dhkim/bankfeed/internal/domain"
	"github.com/dhkim/bankfeed/internal/extract"
)

// headerScanLimit is how many leading rows are examined when looking
// for the header row. Bank exports routinely carry title and banner
// rows above the real header.
const headerScanLimit = 10

// ParseCSV parses an uploaded CSV export into extracted rows. The
// byte-order mark is stripped, EUC-KR content is transparently
// decoded, and the header row is inferred by keyword hits rather than
// assumed to be first.
func ParseCSV(data []byte) ([]domain.Row, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	data = decodeKorean(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseCSV: read row: %w", err)
		}
		records = append(records, record)
	}

	return rowsFromGrid(records), nil
}

// rowsFromGrid infers the header row within the leading rows and maps
// every following data row through the shared column heuristics.
// No qualifying header means no extractable rows, not an error.
func rowsFromGrid(grid [][]string) []domain.Row {
	headerIdx := -1
	var mapping map[int]domain.Field

	for i, cells := range grid {
		if i >= headerScanLimit {
			break
		}
		if extract.HeaderScore(cells) >= 2 {
			headerIdx = i
			mapping = extract.MapHeader(cells)
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	var rows []domain.Row
	for i := headerIdx + 1; i < len(grid); i++ {
		row := make(domain.Row)
		empty := true
		for pos, field := range mapping {
			if pos >= len(grid[i]) {
				continue
			}
			value := strings.TrimSpace(grid[i][pos])
			row[field] = value
			if value != "" {
				empty = false
			}
		}
		if !empty && len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// decodeKorean converts EUC-KR (CP949) encoded exports to UTF-8.
// Content that is already valid UTF-8 passes through untouched.
func decodeKorean(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return data
	}
	return decoded
}
