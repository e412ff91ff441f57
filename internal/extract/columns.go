package extract

import (
	"strings"

	"github.com/dhkim/bankfeed/internal/domain"
)

// synonyms is the single declarative table of semantic fields and the
// header keywords that identify them, consulted by both the HTML and
// spreadsheet extractors. Supporting a new bank or export format means
// adding synonyms here, not new code paths.
//
// Order matters within a family: more specific spellings first so that
// e.g. "거래후잔액" is not swallowed by a shorter pattern. Across
// families, matching order is fixed by fieldOrder below; "출금금액"
// must be checked before the bare "금액" amount family.
var synonyms = map[domain.Field][]string{
	domain.FieldDate:        {"거래일자", "거래일", "거래년월일", "일자", "날짜", "date"},
	domain.FieldTime:        {"거래시간", "시간", "time"},
	domain.FieldOut:         {"출금금액", "출금액", "출금", "지급금액", "지급", "찾으신금액", "withdrawal", "debit"},
	domain.FieldIn:          {"입금금액", "입금액", "입금", "맡기신금액", "deposit", "credit"},
	domain.FieldBalance:     {"거래후잔액", "잔액", "잔고", "balance"},
	domain.FieldDescription: {"적요", "거래내용", "기재내용", "내용", "거래기록사항", "description", "narrative"},
	domain.FieldBranch:      {"거래점", "취급점", "점포", "거래점명", "branch"},
	domain.FieldBank:        {"은행", "금융기관", "bank"},
	domain.FieldType:        {"거래구분", "구분", "거래종류", "type"},
	domain.FieldAmount:      {"거래금액", "금액", "amount"},
}

// fieldOrder fixes the matching precedence across families. The
// specific in/out families must win over the generic amount family,
// and the date family over the time family.
var fieldOrder = []domain.Field{
	domain.FieldOut,
	domain.FieldIn,
	domain.FieldBalance,
	domain.FieldDate,
	domain.FieldTime,
	domain.FieldDescription,
	domain.FieldBranch,
	domain.FieldBank,
	domain.FieldType,
	domain.FieldAmount,
}

// NormalizeHeader prepares a raw header cell for keyword matching:
// trims, lowercases and removes the BOM and all internal whitespace.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(h)
	return strings.Join(strings.Fields(h), "")
}

// MatchField maps a raw header cell to its semantic field. The match
// is substring-based over the normalized header; exact spellings and
// column order are not contracts.
func MatchField(header string) (domain.Field, bool) {
	h := NormalizeHeader(header)
	if h == "" {
		return "", false
	}
	for _, field := range fieldOrder {
		for _, kw := range synonyms[field] {
			if strings.Contains(h, kw) {
				return field, true
			}
		}
	}
	return "", false
}

// HeaderScore counts how many cells of a candidate header row match a
// known keyword family. Spreadsheet header inference picks the first
// row scoring at least two.
func HeaderScore(cells []string) int {
	score := 0
	for _, c := range cells {
		if _, ok := MatchField(c); ok {
			score++
		}
	}
	return score
}

// MapHeader resolves a full header row into a column-position mapping.
// Unrecognized columns are left out; the first match wins when two
// columns resolve to the same field.
func MapHeader(cells []string) map[int]domain.Field {
	mapping := make(map[int]domain.Field)
	seen := make(map[domain.Field]bool)
	for i, c := range cells {
		field, ok := MatchField(c)
		if !ok || seen[field] {
			continue
		}
		mapping[i] = field
		seen[field] = true
	}
	return mapping
}
