// Package normalize converts heuristically-extracted rows into
// canonical ledger-ready transactions.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dhkim/bankfeed/internal/domain"
)

// ErrDateUnparseable marks a row whose date survived no parsing
// strategy. Such rows are dropped and counted, never raised as
// pipeline errors.
var ErrDateUnparseable = errors.New("normalize: unparseable date")

// dateLayouts are tried in order; first successful parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"02.01.2006",
	"2006년 1월 2일",
	"2006년 01월 02일",
}

var (
	dateSubstringRe = regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
	eightDigitRe    = regexp.MustCompile(`\b(\d{8})\b`)
	amountCleanRe   = regexp.MustCompile(`[,\s₩원]|KRW`)
)

// depositWords and withdrawalWords classify explicit transaction-type
// text. Type text wins over the sign of a single amount column.
var (
	depositWords    = []string{"입금", "deposit", "credit"}
	withdrawalWords = []string{"출금", "withdrawal", "debit", "지급"}
)

// ParseDate parses a calendar date from raw cell text. Strategies are
// tried in order: ISO, slash/dot separated, unseparated 8-digit,
// localized long form, and finally a generic date-substring scan over
// free text.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, ErrDateUnparseable
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}

	// Cells like "2024-07-01 09:15" or longer free text still carry a
	// recognizable date substring.
	if m := dateSubstringRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		d := civil.Date{Year: year, Month: time.Month(month), Day: day}
		if d.IsValid() {
			return d, nil
		}
	}
	if m := eightDigitRe.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("20060102", m[1]); err == nil {
			return civil.DateOf(t), nil
		}
	}

	return civil.Date{}, ErrDateUnparseable
}

// ParseAmount coerces raw cell text to a non-negative-friendly integer
// amount. Thousands separators and currency markers are stripped; a
// value already carrying decimals is rounded.
func ParseAmount(s string) (int64, error) {
	s = amountCleanRe.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" || s == "-" {
		return 0, nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("ParseAmount: %q: %w", s, err)
	}
	return int64(math.Round(f)), nil
}

// ParseTime parses a time-of-day cell. Supported shapes are HH:MM:SS
// and HH:MM; anything else reports no time.
func ParseTime(s string) (hour, min, sec int, ok bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), t.Second(), true
		}
	}
	return 0, 0, 0, false
}

// Row converts one extracted row into a canonical transaction.
// The returned error is ErrDateUnparseable (possibly wrapped) when the
// row has no usable date; callers count such rows as invalid and move
// on.
func Row(row domain.Row) (domain.Transaction, error) {
	date, err := ParseDate(row[domain.FieldDate])
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("row date %q: %w", row[domain.FieldDate], err)
	}

	tx := domain.Transaction{
		Date:        date,
		Description: strings.TrimSpace(row[domain.FieldDescription]),
		Branch:      strings.TrimSpace(row[domain.FieldBranch]),
		Bank:        strings.TrimSpace(row[domain.FieldBank]),
	}

	if err := resolveAmounts(row, &tx); err != nil {
		return domain.Transaction{}, err
	}

	if balance, ok := row[domain.FieldBalance]; ok {
		b, err := ParseAmount(balance)
		if err == nil {
			tx.Balance = b
		}
	}

	tx.Timestamp = timestampFor(date, row[domain.FieldTime])
	return tx, nil
}

// resolveAmounts fills In/Out from either the dedicated columns or a
// single signed amount column disambiguated by type text.
func resolveAmounts(row domain.Row, tx *domain.Transaction) error {
	_, hasIn := row[domain.FieldIn]
	_, hasOut := row[domain.FieldOut]

	if hasIn || hasOut {
		in, err := ParseAmount(row[domain.FieldIn])
		if err != nil {
			return fmt.Errorf("resolveAmounts: in: %w", err)
		}
		out, err := ParseAmount(row[domain.FieldOut])
		if err != nil {
			return fmt.Errorf("resolveAmounts: out: %w", err)
		}
		tx.In = abs(in)
		tx.Out = abs(out)
		return nil
	}

	amount, err := ParseAmount(row[domain.FieldAmount])
	if err != nil {
		return fmt.Errorf("resolveAmounts: amount: %w", err)
	}

	switch classifyType(row[domain.FieldType]) {
	case domain.FieldIn:
		tx.In = abs(amount)
	case domain.FieldOut:
		tx.Out = abs(amount)
	default:
		if amount >= 0 {
			tx.In = amount
		} else {
			tx.Out = -amount
		}
	}
	return nil
}

// classifyType maps transaction-type text to the in or out family,
// or "" when the text decides nothing.
func classifyType(typeText string) domain.Field {
	t := strings.ToLower(strings.TrimSpace(typeText))
	if t == "" {
		return ""
	}
	for _, w := range withdrawalWords {
		if strings.Contains(t, w) {
			return domain.FieldOut
		}
	}
	for _, w := range depositWords {
		if strings.Contains(t, w) {
			return domain.FieldIn
		}
	}
	return ""
}

// timestampFor combines the parsed date with a source time-of-day when
// available; absent time falls back to local midnight in KST.
func timestampFor(date civil.Date, timeCell string) time.Time {
	if h, m, s, ok := ParseTime(timeCell); ok {
		return time.Date(date.Year, date.Month, date.Day, h, m, s, 0, domain.KST)
	}
	return time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, domain.KST)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
