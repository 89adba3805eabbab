package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/api/shared"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/store"
)

// JobHandler serves job status lookups and manual retries.
type JobHandler struct {
	jobs   store.JobStore
	queue  Enqueuer
	logger *slog.Logger
}

// NewJobHandler creates a JobHandler.
// If logger is nil, a default logger will be used.
func NewJobHandler(jobs store.JobStore, queue Enqueuer, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobs:   jobs,
		queue:  queue,
		logger: logger.With(slog.String("component", "job_handler")),
	}
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// RetryJob handles POST /api/jobs/{id}/retry requests. Only failed jobs
// can be retried; a retry resets the attempt counter by re-queueing the
// job as if it were new.
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if job.Status != domain.JobStatusFailed {
		shared.RespondWithError(w, r, http.StatusConflict,
			"Only failed jobs can be retried, job is "+string(job.Status))
		return
	}

	err = h.jobs.UpdateStatus(r.Context(), job.ID, store.JobStatusUpdate{
		Status:        domain.JobStatusQueued,
		ResetAttempts: true,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	job.Status = domain.JobStatusQueued
	job.Attempts = 0
	job.Error = ""

	if err := h.queue.Enqueue(job); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Info("job re-queued for retry",
		slog.String("job_id", job.ID.String()),
		slog.String("page_id", job.PageID),
		slog.String("action", string(job.Action)))

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}
