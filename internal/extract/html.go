package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dhkim/bankfeed/internal/domain"
)

// tableKeywords are the domain terms used to score candidate tables.
// A table mentioning none of these is not a transaction table.
var tableKeywords = []string{"거래일", "일자", "입금", "출금", "잔액", "금액", "date", "deposit", "withdrawal", "balance"}

// nhSignature is the structural signature of the NongHyup secure-mail
// statement table: a fixed seven-column layout whose header carries
// this exact keyword set. When recognized, columns are mapped by
// position instead of per-header matching.
var nhSignature = struct {
	columns int
	header  []string
	mapping map[int]domain.Field
}{
	columns: 7,
	header:  []string{"거래일자", "출금", "입금", "잔액", "적요"},
	mapping: map[int]domain.Field{
		0: domain.FieldDate,
		1: domain.FieldTime,
		2: domain.FieldOut,
		3: domain.FieldIn,
		4: domain.FieldBalance,
		5: domain.FieldDescription,
		6: domain.FieldBranch,
	},
}

// FromHTML locates the transaction table inside resolved HTML and
// returns one Row per data row. A document with no recognizable table
// yields an empty result, never an error: a single malformed mail must
// not abort the batch.
func FromHTML(html string) ([]domain.Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable markup is treated the same as no table.
		return nil, nil
	}

	table := bestTable(doc)
	if table == nil {
		return nil, nil
	}

	grid := tableGrid(table)
	if len(grid) < 2 {
		return nil, nil
	}

	headerIdx, mapping := resolveColumns(grid)
	if mapping == nil {
		return nil, nil
	}

	var rows []domain.Row
	for i := headerIdx + 1; i < len(grid); i++ {
		row := cellsToRow(grid[i], mapping)
		if row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// bestTable scores every <table> by domain-keyword presence in its
// full text and returns the highest-scoring candidate.
func bestTable(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestScore := 0

	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		score := 0
		for _, kw := range tableKeywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		// Require at least a date family and one amount family hit.
		if score >= 2 && score > bestScore {
			best = s
			bestScore = score
		}
	})
	return best
}

// tableGrid flattens a table selection into rows of trimmed cell text.
// Both th and td cells are included so header rows are visible.
func tableGrid(table *goquery.Selection) [][]string {
	var grid [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			grid = append(grid, cells)
		}
	})
	return grid
}

// resolveColumns finds the header row and the column-position mapping.
// A recognized bank signature takes the specialized positional
// mapping; otherwise the generic keyword fallback maps each header
// cell individually.
func resolveColumns(grid [][]string) (int, map[int]domain.Field) {
	for i, cells := range grid {
		if i >= 10 {
			break
		}
		if matchesSignature(cells) {
			return i, nhSignature.mapping
		}
		if HeaderScore(cells) >= 2 {
			return i, MapHeader(cells)
		}
	}
	return 0, nil
}

func matchesSignature(cells []string) bool {
	if len(cells) != nhSignature.columns {
		return false
	}
	joined := NormalizeHeader(strings.Join(cells, " "))
	for _, kw := range nhSignature.header {
		if !strings.Contains(joined, kw) {
			return false
		}
	}
	return true
}

// cellsToRow applies a column mapping to one data row. Rows whose
// mapped cells are exclusively empty are dropped.
func cellsToRow(cells []string, mapping map[int]domain.Field) domain.Row {
	row := make(domain.Row)
	empty := true
	for pos, field := range mapping {
		if pos >= len(cells) {
			continue
		}
		value := strings.TrimSpace(cells[pos])
		row[field] = value
		if value != "" {
			empty = false
		}
	}
	if empty || len(row) == 0 {
		return nil
	}
	return row
}
