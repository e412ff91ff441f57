package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhkim/bankfeed/internal/api/handlers"
	"github.com/dhkim/bankfeed/internal/api/middleware"
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
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.NotionToken == "" || cfg.NotionLedgerDB == "" {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_LEDGER_DB must be set")
	}
	if cfg.SecureMailCode == "" {
		log.Warn().Msg("No SECURE_MAIL_CODE configured - secure mails will pass through unresolved")
	}

	// Wire the pipeline collaborators.
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

	state, _, err := scheduler.LoadState(credential.ExpandHome(cfg.StateFile), scheduler.Config{
		DailyIntervalMinutes: cfg.DailyIntervalMinutes,
		WeeklyIntervalDays:   cfg.WeeklyIntervalDays,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scheduler state")
	}
	controller := scheduler.NewController(service, state, log)
	controller.Resume()

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(service, log)
	syncHandler := handlers.NewSyncHandler(service, log)
	schedulerHandler := handlers.NewSchedulerHandler(controller, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			uploadHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.Sync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/scheduler", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			schedulerHandler.GetStatus(w, r)
		case http.MethodPost:
			schedulerHandler.Control(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel the timers without clearing the persisted running flag; an
	// in-flight cycle finishes on its own.
	controller.Shutdown()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
