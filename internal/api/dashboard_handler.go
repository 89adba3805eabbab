package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lecternhq/lectern-api/internal/api/shared"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/store"
)

// recentRunsLimit caps the run list on the dashboard.
const recentRunsLimit = 25

// RunResponse represents one pipeline run on the dashboard.
type RunResponse struct {
	ID            string     `json:"id"`
	JobID         string     `json:"job_id"`
	PageID        string     `json:"page_id"`
	Action        string     `json:"action"`
	Status        string     `json:"status"`
	Model         string     `json:"model"`
	PromptVersion string     `json:"prompt_version"`
	InputTokens   int        `json:"input_tokens"`
	OutputTokens  int        `json:"output_tokens"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// DashboardResponse aggregates everything the dashboard shows in one
// payload.
type DashboardResponse struct {
	Stats      *store.Stats  `json:"stats"`
	RecentRuns []RunResponse `json:"recent_runs"`
	Pending    int           `json:"pending_jobs"`
}

// VersionHistoryResponse lists the artifact versions generated for one
// source page.
type VersionHistoryResponse struct {
	PageID   string                   `json:"page_id"`
	Versions []*store.ArtifactVersion `json:"versions"`
}

// DashboardHandler serves the aggregate pipeline dashboard.
type DashboardHandler struct {
	stats     store.StatsStore
	runs      store.RunStore
	artifacts store.ArtifactStore
	queue     Enqueuer
	logger    *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
// If logger is nil, a default logger will be used.
func NewDashboardHandler(
	stats store.StatsStore,
	runs store.RunStore,
	artifacts store.ArtifactStore,
	queue Enqueuer,
	logger *slog.Logger,
) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		stats:     stats,
		runs:      runs,
		artifacts: artifacts,
		queue:     queue,
		logger:    logger.With(slog.String("component", "dashboard_handler")),
	}
}

// GetDashboard handles GET /api/dashboard requests.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Summary(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load dashboard", err)
		return
	}

	runs, err := h.runs.Recent(r.Context(), recentRunsLimit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load dashboard", err)
		return
	}

	response := DashboardResponse{
		Stats:      stats,
		RecentRuns: make([]RunResponse, 0, len(runs)),
		Pending:    h.queue.Pending(),
	}
	for _, run := range runs {
		response.RecentRuns = append(response.RecentRuns, runToResponse(run))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// GetVersions handles GET /api/dashboard/versions/{pageID} requests. It
// returns every artifact version generated for the source page, newest
// first within each action.
func (h *DashboardHandler) GetVersions(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageID")
	if pageID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Page ID is required")
		return
	}

	versions, err := h.artifacts.ListVersions(r.Context(), pageID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load version history", err)
		return
	}
	if versions == nil {
		versions = []*store.ArtifactVersion{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, VersionHistoryResponse{
		PageID:   pageID,
		Versions: versions,
	})
}

// runToResponse converts a domain.Run to a RunResponse.
func runToResponse(run *domain.Run) RunResponse {
	return RunResponse{
		ID:            run.ID.String(),
		JobID:         run.JobID.String(),
		PageID:        run.PageID,
		Action:        string(run.Action),
		Status:        string(run.Status),
		Model:         run.Model,
		PromptVersion: run.PromptVersion,
		InputTokens:   run.InputTokens,
		OutputTokens:  run.OutputTokens,
		Error:         run.Error,
		StartedAt:     run.StartedAt,
		EndedAt:       run.EndedAt,
	}
}
