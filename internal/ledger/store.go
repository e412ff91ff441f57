// Package ledger is the narrow collaborator boundary in front of the
// transaction ledger. The engine treats the store as append-mostly: it
// never updates or deletes existing rows.
package ledger

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/dhkim/bankfeed/internal/domain"
	"github.com/dhkim/bankfeed/internal/logger"
)

// Store is the opaque ledger collaborator.
type Store interface {
	// QueryRange returns ledger transactions whose date falls within
	// [start, end], both inclusive.
	QueryRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error)

	// Insert appends one transaction and returns its store-side ID.
	Insert(ctx context.Context, tx domain.Transaction) (string, error)
}

// Append writes new transactions through the store. Writes are
// independent per record: a failure on one record is logged and does
// not block the remainder of the batch. Returns the number of records
// written.
func Append(ctx context.Context, store Store, txs []domain.Transaction) int {
	log := logger.FromContext(ctx)

	written := 0
	for _, tx := range txs {
		id, err := store.Insert(ctx, tx)
		if err != nil {
			log.Warn().
				Err(err).
				Str("date", tx.Date.String()).
				Int64("in", tx.In).
				Int64("out", tx.Out).
				Msg("Failed to append transaction to ledger")
			continue
		}
		log.Info().
			Str("id", id).
			Str("date", tx.Date.String()).
			Int64("in", tx.In).
			Int64("out", tx.Out).
			Str("description", tx.Description).
			Msg("Appended transaction to ledger")
		written++
	}
	return written
}
