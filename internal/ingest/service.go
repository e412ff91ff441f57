// Package ingest wires the ingestion pipeline: credential session,
// mail and file source adapters, secure-mail resolution, tabular
// extraction, normalization, deduplication and ledger persistence.
package ingest

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dhkim/bankfeed/internal/dedup"
	"github.com/dhkim/bankfeed/internal/domain"
	"github.com/dhkim/bankfeed/internal/extract"
	"github.com/dhkim/bankfeed/internal/fileimport"
	"github.com/dhkim/bankfeed/internal/ledger"
	"github.com/dhkim/bankfeed/internal/mailbox"
	"github.com/dhkim/bankfeed/internal/normalize"
	"github.com/dhkim/bankfeed/internal/securemail"
)

// MailSource is the slice of the email adapter the pipeline consumes.
type MailSource interface {
	Search(ctx context.Context, q mailbox.Query) ([]string, string, error)
	Fetch(ctx context.Context, messageID string) (*domain.RawDocument, error)
}

// MailFactory opens a mail session. It is invoked at the start of
// every cycle so each cycle runs against a freshly validated
// credential session.
type MailFactory func(ctx context.Context) (MailSource, error)

// Result summarizes one ingestion run so callers can diagnose partial
// failures without reading logs.
type Result struct {
	Total      int `json:"totalRecords"`
	Valid      int `json:"validRecords"`
	Invalid    int `json:"invalidRecords"`
	Duplicates int `json:"duplicates"`
	New        int `json:"newTransactions"`
	Documents  int `json:"documents,omitempty"`
}

// SyncOptions control one email ingestion cycle.
type SyncOptions struct {
	// Since overrides the scan start date. Zero means derive it: the
	// latest known ledger date, or the wide window under ForceFull.
	Since time.Time

	// ForceFull ignores the last-known-ledger-date watermark and
	// rescans the configured wide window.
	ForceFull bool

	// BatchSize caps messages per cycle; zero uses the service default.
	BatchSize int
}

// Service runs ingestion cycles. Cycles are driven by the scheduler or
// invoked directly by the upload and sync entry points.
type Service struct {
	mailFn   MailFactory
	resolver securemail.Resolver
	store    ledger.Store

	sender         string
	subject        string
	batchSize      int
	fullWindowDays int

	log zerolog.Logger
}

// Config carries the service wiring.
type Config struct {
	Mail           MailFactory
	Resolver       securemail.Resolver
	Store          ledger.Store
	Sender         string
	Subject        string
	BatchSize      int
	FullWindowDays int
	Logger         zerolog.Logger
}

// New creates an ingestion service.
func New(cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FullWindowDays <= 0 {
		cfg.FullWindowDays = 90
	}
	return &Service{
		mailFn:         cfg.Mail,
		resolver:       cfg.Resolver,
		store:          cfg.Store,
		sender:         cfg.Sender,
		subject:        cfg.Subject,
		batchSize:      cfg.BatchSize,
		fullWindowDays: cfg.FullWindowDays,
		log:            cfg.Logger,
	}
}

// SyncMail runs one email ingestion cycle. Per-document failures are
// logged and skipped; only credential absence or a total inability to
// reach the source fails the cycle.
func (s *Service) SyncMail(ctx context.Context, opts SyncOptions) (Result, error) {
	var result Result

	mail, err := s.mailFn(ctx)
	if err != nil {
		return result, fmt.Errorf("ingest: open mail session: %w", err)
	}

	since, err := s.scanStart(ctx, opts)
	if err != nil {
		return result, err
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.batchSize
	}

	ids, _, err := mail.Search(ctx, mailbox.Query{
		Sender:   s.sender,
		Subject:  s.subject,
		Since:    since,
		PageSize: int64(batch),
	})
	if err != nil {
		return result, fmt.Errorf("ingest: search mailbox: %w", err)
	}

	s.log.Info().
		Int("messages", len(ids)).
		Time("since", since).
		Bool("force_full", opts.ForceFull).
		Msg("Starting mail ingestion cycle")

	win, err := s.loadIndex(ctx, civil.DateOf(since), civil.DateOf(time.Now().In(domain.KST)))
	if err != nil {
		return result, err
	}

	// Documents are processed one at a time, in listing order, so the
	// dedup index already reflects earlier documents of this cycle when
	// later ones are considered.
	for _, id := range ids {
		doc, err := mail.Fetch(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("message_id", id).Msg("Failed to fetch message, skipping")
			continue
		}
		if doc == nil {
			s.log.Debug().Str("message_id", id).Msg("Message carries no HTML part")
			continue
		}
		result.Documents++

		html, err := s.resolver.Resolve(ctx, doc.HTML)
		if err != nil {
			s.log.Warn().Err(err).Str("message_id", id).Msg("Secure mail resolution error, using raw content")
			html = doc.HTML
		}

		rows, err := extract.FromHTML(html)
		if err != nil || len(rows) == 0 {
			s.log.Debug().Str("message_id", id).Msg("No transaction table found")
			continue
		}

		s.ingestRows(ctx, rows, win, &result)
	}

	s.log.Info().
		Int("total", result.Total).
		Int("new", result.New).
		Int("duplicates", result.Duplicates).
		Int("invalid", result.Invalid).
		Msg("Mail ingestion cycle finished")

	return result, nil
}

// ImportFile ingests one uploaded CSV/XLS/XLSX file.
func (s *Service) ImportFile(ctx context.Context, filename string, data []byte) (Result, error) {
	var result Result

	rows, err := fileimport.Parse(filename, data)
	if err != nil {
		return result, fmt.Errorf("ingest: parse %s: %w", filename, err)
	}
	result.Documents = 1

	// Normalize first so the dedup window can cover exactly the dates
	// present in the file.
	candidates := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		result.Total++
		tx, err := normalize.Row(row)
		if err != nil {
			result.Invalid++
			s.log.Debug().Err(err).Msg("Dropping row with unparseable date")
			continue
		}
		result.Valid++
		candidates = append(candidates, tx)
	}

	if len(candidates) == 0 {
		return result, nil
	}

	start, end := dateBounds(candidates)
	win, err := s.loadIndex(ctx, start, end)
	if err != nil {
		return result, err
	}

	for _, tx := range candidates {
		if win.idx.Contains(tx) {
			result.Duplicates++
			continue
		}
		if written := ledger.Append(ctx, s.store, []domain.Transaction{tx}); written == 1 {
			win.idx.Add(tx)
			result.New++
		}
	}

	s.log.Info().
		Str("file", filename).
		Int("total", result.Total).
		Int("new", result.New).
		Int("duplicates", result.Duplicates).
		Int("invalid", result.Invalid).
		Msg("File import finished")

	return result, nil
}

// ingestRows normalizes, deduplicates and persists the rows of one
// document, extending the index with every successful write.
func (s *Service) ingestRows(ctx context.Context, rows []domain.Row, win *windowedIndex, result *Result) {
	candidates := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		result.Total++

		tx, err := normalize.Row(row)
		if err != nil {
			result.Invalid++
			s.log.Debug().Err(err).Msg("Dropping row with unparseable date")
			continue
		}
		result.Valid++
		candidates = append(candidates, tx)
	}
	if len(candidates) == 0 {
		return
	}

	// Statement documents span multiple days and routinely carry rows
	// dated before the cycle's scan start; the dedup lookup must cover
	// every candidate date before any write.
	start, end := dateBounds(candidates)
	if err := win.cover(ctx, start, end); err != nil {
		s.log.Warn().Err(err).Msg("Failed to widen dedup window, skipping document")
		return
	}

	for _, tx := range candidates {
		if win.idx.Contains(tx) {
			result.Duplicates++
			continue
		}
		if written := ledger.Append(ctx, s.store, []domain.Transaction{tx}); written == 1 {
			win.idx.Add(tx)
			result.New++
		}
	}
}

// scanStart derives the cycle's scan start date.
func (s *Service) scanStart(ctx context.Context, opts SyncOptions) (time.Time, error) {
	if !opts.Since.IsZero() {
		return opts.Since, nil
	}

	wide := time.Now().In(domain.KST).AddDate(0, 0, -s.fullWindowDays)
	if opts.ForceFull {
		return wide, nil
	}

	latest, ok, err := s.latestLedgerDate(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return wide, nil
	}
	return latest.In(domain.KST), nil
}

// latestLedgerDate scans the wide window for the most recent ledger
// entry; ok is false for an empty ledger.
func (s *Service) latestLedgerDate(ctx context.Context) (civil.Date, bool, error) {
	today := civil.DateOf(time.Now().In(domain.KST))
	start := today.AddDays(-s.fullWindowDays)

	existing, err := s.store.QueryRange(ctx, start, today)
	if err != nil {
		return civil.Date{}, false, fmt.Errorf("ingest: query ledger watermark: %w", err)
	}
	if len(existing) == 0 {
		return civil.Date{}, false, nil
	}

	latest := existing[0].Date
	for _, tx := range existing[1:] {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	return latest, true, nil
}

// windowedIndex pairs the dedup lookup with the ledger date window it
// was loaded from, so the window can be widened on demand when a
// document carries rows dated outside it.
type windowedIndex struct {
	store ledger.Store
	idx   *dedup.Index
	start civil.Date
	end   civil.Date
}

// loadIndex builds the dedup lookup for a date window. The lookup is
// rebuilt per cycle so concurrent external writes to the store are
// tolerated.
func (s *Service) loadIndex(ctx context.Context, start, end civil.Date) (*windowedIndex, error) {
	existing, err := s.store.QueryRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("ingest: query ledger for dedup: %w", err)
	}
	return &windowedIndex{store: s.store, idx: dedup.NewIndex(existing), start: start, end: end}, nil
}

// cover widens the loaded window to include [start, end], merging the
// newly visible ledger entries into the lookup.
func (w *windowedIndex) cover(ctx context.Context, start, end civil.Date) error {
	if start.Before(w.start) {
		older, err := w.store.QueryRange(ctx, start, w.start.AddDays(-1))
		if err != nil {
			return fmt.Errorf("ingest: widen dedup window: %w", err)
		}
		for _, tx := range older {
			w.idx.Add(tx)
		}
		w.start = start
	}
	if end.After(w.end) {
		newer, err := w.store.QueryRange(ctx, w.end.AddDays(1), end)
		if err != nil {
			return fmt.Errorf("ingest: widen dedup window: %w", err)
		}
		for _, tx := range newer {
			w.idx.Add(tx)
		}
		w.end = end
	}
	return nil
}

func dateBounds(txs []domain.Transaction) (civil.Date, civil.Date) {
	start, end := txs[0].Date, txs[0].Date
	for _, tx := range txs[1:] {
		if tx.Date.Before(start) {
			start = tx.Date
		}
		if tx.Date.After(end) {
			end = tx.Date
		}
	}
	return start, end
}
