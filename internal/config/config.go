package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Config holds all runtime configuration for the ingestion service.
// Everything is environment-driven; flags on the individual binaries
// only cover cmd-local toggles.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// Ledger store (Notion database acting as the transaction ledger).
	NotionToken    string `env:"NOTION_TOKEN"`
	NotionLedgerDB string `env:"NOTION_LEDGER_DB"`

	// Mail credential (OAuth client for the Gmail API).
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	TokenFile          string `env:"BANKFEED_TOKEN_FILE" envDefault:"~/.bankfeed/token.json"`

	// Mail search filter. Sender and subject narrow the mailbox scan to
	// bank notification mails.
	MailSender  string `env:"MAIL_SENDER" envDefault:"nonghyup.com"`
	MailSubject string `env:"MAIL_SUBJECT" envDefault:"입출금내역"`

	// SecureMailCode is the fixed verification code the resolver enters
	// into interactive secure-mail barriers.
	SecureMailCode string `env:"SECURE_MAIL_CODE"`

	// Scheduler cadence.
	DailyIntervalMinutes int    `env:"DAILY_INTERVAL_MINUTES" envDefault:"30"`
	WeeklyIntervalDays   int    `env:"WEEKLY_INTERVAL_DAYS" envDefault:"7"`
	StateFile            string `env:"BANKFEED_STATE_FILE" envDefault:"~/.bankfeed/scheduler.json"`

	// FullResyncWindowDays is the wide scan window used when a cycle
	// ignores the last-run watermark.
	FullResyncWindowDays int `env:"FULL_RESYNC_WINDOW_DAYS" envDefault:"90"`

	// BatchSize caps the number of mail messages fetched per cycle.
	BatchSize int `env:"SYNC_BATCH_SIZE" envDefault:"50"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
