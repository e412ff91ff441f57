// Package dedup decides whether normalized transactions already exist
// in the ledger.
package dedup

import (
	"github.com/dhkim/bankfeed/internal/domain"
)

// Index is a same-day lookup over known ledger entries. Time-of-day is
// ignored: entries are grouped by calendar date, and a candidate is a
// duplicate when any same-day entry matches its deduplication key.
type Index struct {
	byDate map[string][]domain.Key
}

// NewIndex builds a lookup from an existing ledger slice.
func NewIndex(existing []domain.Transaction) *Index {
	idx := &Index{byDate: make(map[string][]domain.Key)}
	for _, tx := range existing {
		idx.Add(tx)
	}
	return idx
}

// Add extends the index with one transaction. The ingestion cycle adds
// each accepted candidate so later documents in the same cycle see the
// persistence effects of earlier ones.
func (idx *Index) Add(tx domain.Transaction) {
	key := tx.Key()
	idx.byDate[key.Date] = append(idx.byDate[key.Date], key)
}

// Contains reports whether a transaction with the same deduplication
// key is already known. Matching ignores source and full description
// text: amounts, balance and the normalized description prefix
// identify a single account's real-world event.
func (idx *Index) Contains(tx domain.Transaction) bool {
	key := tx.Key()
	for _, known := range idx.byDate[key.Date] {
		if known == key {
			return true
		}
	}
	return false
}

// FilterNew returns the candidates not already present in the ledger
// slice, extending the lookup as it accepts candidates so intra-batch
// redeliveries also collapse. Candidates without a parseable date are
// excluded upstream by the normalizer and never reach this stage.
func FilterNew(candidates []domain.Transaction, existing []domain.Transaction) []domain.Transaction {
	idx := NewIndex(existing)
	fresh := make([]domain.Transaction, 0, len(candidates))
	for _, c := range candidates {
		if idx.Contains(c) {
			continue
		}
		idx.Add(c)
		fresh = append(fresh, c)
	}
	return fresh
}
