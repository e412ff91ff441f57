package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dhkim/bankfeed/internal/config"
	"github.com/dhkim/bankfeed/internal/credential"
	"github.com/dhkim/bankfeed/internal/ingest"
	"github.com/dhkim/bankfeed/internal/ledger"
	"github.com/dhkim/bankfeed/internal/logger"
	"github.com/dhkim/bankfeed/internal/mailbox"
	"github.com/dhkim/bankfeed/internal/scheduler"
	"github.com/dhkim/bankfeed/internal/securemail"
)

func main() {
	var (
		once      = flag.Bool("once", false, "run one ingestion cycle and exit")
		forceFull = flag.Bool("force-full", false, "ignore the ledger watermark and rescan the full window")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.NotionToken == "" || cfg.NotionLedgerDB == "" {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_LEDGER_DB must be set")
	}

	store := ledger.NewNotionStore(ledger.NewNotionClient(cfg.NotionToken), cfg.NotionLedgerDB)
	mgr := credential.NewManager(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.TokenFile)

	service := ingest.New(ingest.Config{
		Mail: func(ctx context.Context) (ingest.MailSource, error) {
			return mailbox.NewClient(ctx, mgr)
		},
		Resolver:       securemail.NewChromeResolver(cfg.SecureMailCode, log),
		Store:          store,
		Sender:         cfg.MailSender,
		Subject:        cfg.MailSubject,
		BatchSize:      cfg.BatchSize,
		FullWindowDays: cfg.FullResyncWindowDays,
		Logger:         log,
	})

	if *once {
		result, err := service.SyncMail(logger.WithContext(context.Background(), log), ingest.SyncOptions{ForceFull: *forceFull})
		if err != nil {
			log.Fatal().Err(err).Msg("Ingestion cycle failed")
		}
		log.Info().
			Int("total", result.Total).
			Int("new", result.New).
			Int("duplicates", result.Duplicates).
			Int("invalid", result.Invalid).
			Msg("Ingestion cycle finished")
		return
	}

	state, found, err := scheduler.LoadState(credential.ExpandHome(cfg.StateFile), scheduler.Config{
		DailyIntervalMinutes: cfg.DailyIntervalMinutes,
		WeeklyIntervalDays:   cfg.WeeklyIntervalDays,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scheduler state")
	}

	controller := scheduler.NewController(service, state, log)
	if found {
		// Honor the persisted state, including an explicit operator Stop.
		controller.Resume()
	} else {
		// A fresh deployment has no persisted state yet; start polling.
		controller.Start()
	}

	log.Info().
		Int("daily_minutes", state.Config.DailyIntervalMinutes).
		Int("weekly_days", state.Config.WeeklyIntervalDays).
		Msg("Worker polling")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	controller.Shutdown()
	log.Info().Msg("Worker exited")
}
