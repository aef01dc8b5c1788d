package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/importer"
	"github.com/kozaktomas/photo-picker/internal/picker"
)

// PickerAPI is the Google Photos Picker client used by PickerHandler.
type PickerAPI interface {
	CreateSession(ctx context.Context) (*picker.Session, error)
	GetSession(ctx context.Context, id string) (*picker.Session, error)
	ListPickedItems(ctx context.Context, sessionID, pageToken string) (*picker.ItemsPage, error)
	ListAllPickedItems(ctx context.Context, sessionID string) ([]picker.PickedMediaItem, error)
	DeleteSession(ctx context.Context, id string)
}

// Tokens supplies the stored access token and clears it when Google
// rejects it.
type Tokens interface {
	credential.TokenSource
	Clear(ctx context.Context) error
}

// ItemImporter imports a batch of picked items.
type ItemImporter interface {
	Import(ctx context.Context, items []picker.PickedMediaItem, tokens credential.TokenSource) (*importer.Result, error)
}

// ImporterFactory builds an importer reporting to onProgress.
type ImporterFactory func(onProgress func(importer.ProgressInfo)) ItemImporter

// PickerHandler handles picking sessions and import jobs
type PickerHandler struct {
	api          PickerAPI
	tokens       Tokens
	newImporter  ImporterFactory
	jobManager   *JobManager
	pollInterval time.Duration
	baseCtx      context.Context
	logger       zerolog.Logger
}

// NewPickerHandler creates a new picker handler. Import jobs run under
// baseCtx so that cancelling it stops them.
func NewPickerHandler(baseCtx context.Context, api PickerAPI, tokens Tokens, newImporter ImporterFactory, jm *JobManager, pollInterval time.Duration, logger zerolog.Logger) *PickerHandler {
	return &PickerHandler{
		api:          api,
		tokens:       tokens,
		newImporter:  newImporter,
		jobManager:   jm,
		pollInterval: pollInterval,
		baseCtx:      baseCtx,
		logger:       logger,
	}
}

// CreateSession creates a new picking session.
func (h *PickerHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.api.CreateSession(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// GetSession returns the current state of a picking session.
func (h *PickerHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.api.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// DeleteSession deletes a picking session. Failures are logged by the
// client and never reported.
func (h *PickerHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.api.DeleteSession(r.Context(), chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ListItems returns one page of picked items.
func (h *PickerHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, err := h.api.ListPickedItems(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("pageToken"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// StartImport starts a background job that waits for the selection,
// imports every picked item and deletes the session.
func (h *PickerHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	jobID := uuid.New().String()
	job, ctx := h.jobManager.CreateJob(h.baseCtx, jobID, sessionID)

	go h.runImportJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     jobID,
		"session_id": sessionID,
		"status":     string(JobStatusPending),
	})
}

// JobStatus returns the status of an import job
func (h *PickerHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// JobEvents streams job events via SSE
func (h *PickerHandler) JobEvents(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ImportJob).Snapshot()
		},
	)
}

// CancelJob cancels an import job
func (h *PickerHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runImportJob runs the import job in the background
func (h *PickerHandler) runImportJob(ctx context.Context, job *ImportJob) {
	defer job.cancel()
	log := h.logger.With().Str("job_id", job.ID).Str("session_id", job.SessionID).Logger()

	job.mu.Lock()
	if isJobTerminal(job.Status) {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Import job started"})

	job.setPhase(PhasePolling)
	poller := picker.NewPoller(h.api, h.tokens,
		picker.WithDefaultInterval(h.pollInterval),
		picker.WithPollerLogger(log),
	)
	session, err := picker.WaitForSession(ctx, poller, job.SessionID)
	if err != nil {
		h.endJob(ctx, job, err)
		return
	}

	job.setPhase(PhaseListing)
	items, err := h.api.ListAllPickedItems(ctx, session.ID)
	if err != nil {
		h.endJob(ctx, job, err)
		return
	}

	job.mu.Lock()
	job.TotalItems = len(items)
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "items_counted", Data: map[string]int{"total": len(items)}})

	job.setPhase(PhaseImporting)
	imp := h.newImporter(func(info importer.ProgressInfo) {
		job.mu.Lock()
		job.ProcessedItems = info.Current
		if info.Total > 0 {
			job.Progress = info.Current * 100 / info.Total
		}
		job.mu.Unlock()

		data := map[string]any{
			"current": info.Current,
			"total":   info.Total,
			"item_id": info.ItemID,
			"label":   info.Label,
		}
		if info.Record != nil {
			data["record_id"] = info.Record.ID
		}
		if info.Err != nil {
			data["error"] = info.Err.Error()
		}
		job.SendEvent(JobEvent{Type: "progress", Data: data})
	})

	result, err := imp.Import(ctx, items, h.tokens)
	if err != nil {
		h.endJob(ctx, job, err)
		return
	}

	job.setPhase(PhaseCleanup)
	h.api.DeleteSession(context.WithoutCancel(ctx), session.ID)

	jobResult := &ImportJobResult{
		Imported: len(result.Records),
		Failed:   len(result.Failures),
		Records:  result.Records,
		Failures: result.Failures,
	}
	if job.finish(JobStatusCompleted, "", jobResult) {
		log.Info().Int("imported", jobResult.Imported).Int("failed", jobResult.Failed).Msg("import job completed")
		job.SendEvent(JobEvent{Type: "completed", Data: jobResult})
	}
}

// endJob records a failed or cancelled job.
func (h *PickerHandler) endJob(ctx context.Context, job *ImportJob, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if job.finish(JobStatusCancelled, "", nil) {
			job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
		}
		return
	}

	h.logger.Warn().Err(err).Str("job_id", job.ID).Msg("import job failed")
	if job.finish(JobStatusFailed, err.Error(), nil) {
		job.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
	}
}
