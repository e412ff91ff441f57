package domain

import (
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
)

// descPrefixLen is the number of runes of the whitespace-stripped
// description that participate in the deduplication key. Redelivered
// notifications commonly differ in trailing text or incidental
// whitespace while preserving amounts and balance.
const descPrefixLen = 10

// KST is the fixed operating-region offset. Bank notifications carry
// local wall-clock times with no zone designator.
var KST = time.FixedZone("KST", 9*60*60)

// Transaction is the normalized, ledger-ready representation of one
// bank movement.
// Date is required; a record without a parseable date is rejected
// before it reaches deduplication. Exactly one of In/Out is normally
// non-zero.
type Transaction struct {
	Date        civil.Date
	Timestamp   time.Time
	In          int64
	Out         int64
	Balance     int64
	Description string
	Branch      string
	Bank        string
	Memo        string
}

// Key is the derived deduplication tuple. Two transactions sharing a
// Key are treated as the same real-world event regardless of source
// (mail batch vs. spreadsheet upload).
type Key struct {
	Date       string
	In         int64
	Out        int64
	Balance    int64
	DescPrefix string
}

// Key derives the deduplication key for the transaction.
func (t Transaction) Key() Key {
	return Key{
		Date:       t.Date.String(),
		In:         t.In,
		Out:        t.Out,
		Balance:    t.Balance,
		DescPrefix: DescPrefix(t.Description),
	}
}

// DescPrefix strips all whitespace from a description and truncates it
// to the fixed comparison prefix length.
func DescPrefix(desc string) string {
	var b strings.Builder
	n := 0
	for _, r := range desc {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		n++
		if n >= descPrefixLen {
			break
		}
	}
	return b.String()
}

// SourceKind identifies where a raw document came from.
type SourceKind string

const (
	// SourceMail marks documents fetched from the bank-notification mailbox.
	SourceMail SourceKind = "mail"
	// SourceUpload marks documents received through the file-upload entry point.
	SourceUpload SourceKind = "upload"
)

// RawDocument is an opaque blob plus its origin metadata. It is
// created per adapter fetch, consumed once by the extractor, and never
// persisted beyond the ingestion run.
type RawDocument struct {
	Source      SourceKind
	MessageID   string // mail path
	Filename    string // upload path
	RetrievedAt time.Time
	HTML        string // mail path: resolved or raw HTML body
	Data        []byte // upload path: spreadsheet bytes
}

// Field names a semantic column detected by the extractors. Column
// identification is keyword-driven; positions and exact spellings are
// not contracts.
type Field string

const (
	FieldDate        Field = "date"
	FieldTime        Field = "time"
	FieldIn          Field = "in"
	FieldOut         Field = "out"
	FieldAmount      Field = "amount"
	FieldBalance     Field = "balance"
	FieldDescription Field = "description"
	FieldBranch      Field = "branch"
	FieldBank        Field = "bank"
	FieldType        Field = "type"
)

// Row is one extracted data row: a mapping from best-guess semantic
// field to the raw cell value. Ephemeral; consumed by the normalizer.
type Row map[Field]string
