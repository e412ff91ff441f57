package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhkim/bankfeed/internal/api/middleware"
	"github.com/dhkim/bankfeed/internal/credential"
	"github.com/dhkim/bankfeed/internal/domain"
	"github.com/dhkim/bankfeed/internal/ingest"
	"github.com/dhkim/bankfeed/internal/scheduler"
)

// maxUploadBytes caps statement uploads; real bank exports are well
// under a megabyte.
const maxUploadBytes = 16 << 20

// Ingestor is the slice of the ingestion service the HTTP surface
// consumes.
type Ingestor interface {
	SyncMail(ctx context.Context, opts ingest.SyncOptions) (ingest.Result, error)
	ImportFile(ctx context.Context, filename string, data []byte) (ingest.Result, error)
}

// SchedulerControl is the slice of the scheduler controller the HTTP
// surface consumes.
type SchedulerControl interface {
	Start() scheduler.Status
	Stop() scheduler.Status
	Restart() scheduler.Status
	Reconfigure(cfg scheduler.Config) (scheduler.Status, error)
	Execute(ctx context.Context, forceFull bool) (ingest.Result, scheduler.Status, error)
	Status() scheduler.Status
}

// UploadHandler handles spreadsheet statement uploads.
type UploadHandler struct {
	service Ingestor
	log     zerolog.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(service Ingestor, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{service: service, log: log}
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A 'file' form field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	result, err := h.service.ImportFile(ctx, header.Filename, data)
	if err != nil {
		h.log.Warn().Err(err).Str("filename", header.Filename).Msg("File import rejected")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Could not parse the uploaded file")
		return
	}

	h.log.Info().
		Str("filename", header.Filename).
		Int("new", result.New).
		Int("duplicates", result.Duplicates).
		Msg("File upload processed")

	middleware.WriteJSON(w, http.StatusOK, result)
}

// SyncHandler triggers on-demand email ingestion cycles.
type SyncHandler struct {
	service Ingestor
	log     zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(service Ingestor, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{service: service, log: log}
}

// Sync handles POST /api/sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SinceDate string `json:"sinceDate"`
		ForceFull bool   `json:"forceFull"`
		BatchSize int    `json:"batchSize"`
	}

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	opts := ingest.SyncOptions{ForceFull: req.ForceFull, BatchSize: req.BatchSize}
	if req.SinceDate != "" {
		since, err := time.ParseInLocation("2006-01-02", req.SinceDate, domain.KST)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "sinceDate must be YYYY-MM-DD")
			return
		}
		opts.Since = since
	}

	result, err := h.service.SyncMail(r.Context(), opts)
	if err != nil {
		if errors.Is(err, credential.ErrAuthMissing) {
			middleware.WriteError(w, http.StatusUnauthorized, "No stored mailbox authorization, run the authorize command first")
			return
		}
		h.log.Error().Err(err).Msg("Sync cycle failed")
		middleware.WriteError(w, http.StatusBadGateway, "Sync cycle failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// SchedulerHandler exposes scheduler control.
type SchedulerHandler struct {
	ctl SchedulerControl
	log zerolog.Logger
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(ctl SchedulerControl, log zerolog.Logger) *SchedulerHandler {
	return &SchedulerHandler{ctl: ctl, log: log}
}

// GetStatus handles GET /api/scheduler
func (h *SchedulerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.ctl.Status())
}

// schedulerRequest is the POST /api/scheduler body.
type schedulerRequest struct {
	Action    string            `json:"action"`
	ForceFull bool              `json:"forceFull"`
	Config    *scheduler.Config `json:"config"`
}

// Control handles POST /api/scheduler
func (h *SchedulerHandler) Control(w http.ResponseWriter, r *http.Request) {
	var req schedulerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Action {
	case "start":
		middleware.WriteJSON(w, http.StatusOK, h.ctl.Start())
	case "stop":
		middleware.WriteJSON(w, http.StatusOK, h.ctl.Stop())
	case "restart":
		middleware.WriteJSON(w, http.StatusOK, h.ctl.Restart())
	case "reconfigure":
		if req.Config == nil {
			middleware.WriteError(w, http.StatusBadRequest, "reconfigure requires a config object")
			return
		}
		status, err := h.ctl.Reconfigure(*req.Config)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		middleware.WriteJSON(w, http.StatusOK, status)
	case "execute":
		result, status, err := h.ctl.Execute(r.Context(), req.ForceFull)
		if err != nil {
			if errors.Is(err, scheduler.ErrBusy) {
				middleware.WriteError(w, http.StatusConflict, "A cycle is already in progress")
				return
			}
			h.log.Error().Err(err).Msg("Manual cycle failed")
			middleware.WriteError(w, http.StatusBadGateway, "Cycle failed")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"result": result,
			"status": status,
		})
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Unknown action: "+req.Action)
	}
}
