package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/lecternhq/lectern-api/internal/api/shared"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/store"
)

// WebhookSecretHeader carries the shared secret on webhook requests.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookRequest represents the payload of a workspace automation webhook.
type WebhookRequest struct {
	PageID string `json:"page_id" validate:"required,min=1"`
	Action string `json:"action"  validate:"required,min=1"`
}

// JobResponse represents the response data for a job.
type JobResponse struct {
	ID          string    `json:"id"`
	PageID      string    `json:"page_id"`
	Action      string    `json:"action"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enqueuer is the queue surface the handlers need.
type Enqueuer interface {
	Enqueue(job *domain.Job) error
	Pending() int
}

// WebhookHandler accepts workspace automation webhooks and turns them
// into queued jobs.
type WebhookHandler struct {
	jobs        store.JobStore
	queue       Enqueuer
	secret      string
	maxAttempts int
	logger      *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
// If logger is nil, a default logger will be used.
func NewWebhookHandler(
	jobs store.JobStore,
	queue Enqueuer,
	secret string,
	maxAttempts int,
	logger *slog.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		jobs:        jobs,
		queue:       queue,
		secret:      secret,
		maxAttempts: maxAttempts,
		logger:      logger.With(slog.String("component", "webhook_handler")),
	}
}

// HandleWebhook handles POST /api/webhook requests. The shared secret is
// checked before the body is read: an unauthenticated request leaves no
// trace in the job store.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get(WebhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		h.logger.Warn("webhook rejected, invalid secret",
			slog.String("remote_addr", r.RemoteAddr))
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	var req WebhookRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Validation error: "+err.Error())
		return
	}

	action := domain.ActionType(req.Action)
	if !action.IsValid() {
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Unknown action: "+req.Action)
		return
	}

	job, err := domain.NewJob(req.PageID, action, h.maxAttempts)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if err := h.queue.Enqueue(job); err != nil {
		// The job row exists but will never run; mark it so the
		// dashboard does not show a phantom queued job.
		updateErr := h.jobs.UpdateStatus(r.Context(), job.ID, store.JobStatusUpdate{
			Status: domain.JobStatusFailed,
			Error:  err.Error(),
		})
		if updateErr != nil {
			h.logger.Error("failed to mark rejected job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", updateErr.Error()))
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Info("job accepted",
		slog.String("job_id", job.ID.String()),
		slog.String("page_id", job.PageID),
		slog.String("action", string(job.Action)),
		slog.Int("pending", h.queue.Pending()))

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// jobToResponse converts a domain.Job to a JobResponse.
func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:          job.ID.String(),
		PageID:      job.PageID,
		Action:      string(job.Action),
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}
