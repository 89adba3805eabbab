package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/api/shared"
	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatsStore struct {
	stats *store.Stats
	err   error
}

func (s *fakeStatsStore) Summary(_ context.Context) (*store.Stats, error) {
	return s.stats, s.err
}

type fakeRunStore struct {
	runs []*domain.Run
	err  error
}

func (s *fakeRunStore) Create(_ context.Context, _ *domain.Run) error { return nil }

func (s *fakeRunStore) Finish(_ context.Context, _ uuid.UUID, _ store.RunOutcome) error {
	return nil
}

func (s *fakeRunStore) Recent(_ context.Context, limit int) ([]*domain.Run, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.runs) > limit {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

type fakeArtifactStore struct {
	versions []*store.ArtifactVersion
	err      error
}

func (s *fakeArtifactStore) GetPageRef(_ context.Context, _, _ string) (string, error) {
	return "", store.ErrArtifactNotFound
}

func (s *fakeArtifactStore) SetPageRef(_ context.Context, _, _, _ string) error { return nil }

func (s *fakeArtifactStore) LatestVersion(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}

func (s *fakeArtifactStore) CreateVersion(_ context.Context, _, _ string, _ uuid.UUID) (int, error) {
	return 1, nil
}

func (s *fakeArtifactStore) ListVersions(_ context.Context, pageID string) ([]*store.ArtifactVersion, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*store.ArtifactVersion
	for _, v := range s.versions {
		if v.PageID == pageID {
			out = append(out, v)
		}
	}
	return out, nil
}

func TestGetDashboard(t *testing.T) {
	job, err := domain.NewJob("page-1", domain.ActionChecklist, 3)
	require.NoError(t, err)
	run := domain.NewRun(job, "gemini-test", "v1")
	run.InputTokens = 500
	run.OutputTokens = 120

	stats := &store.Stats{
		TotalJobs:      4,
		JobsByAction:   map[string]int{"checklist": 2, "tree": 2},
		TotalRuns:      5,
		SuccessfulRuns: 3,
		FailedRuns:     2,
		TotalTokens:    1200,
		TreeNodes:      7,
	}

	handler := NewDashboardHandler(
		&fakeStatsStore{stats: stats},
		&fakeRunStore{runs: []*domain.Run{run}},
		&fakeArtifactStore{},
		&fakeQueue{jobs: []*domain.Job{job}},
		nil,
	)

	w := httptest.NewRecorder()
	handler.GetDashboard(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp DashboardResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 4, resp.Stats.TotalJobs)
	assert.Equal(t, 2, resp.Stats.JobsByAction["tree"])
	assert.Equal(t, 1, resp.Pending)

	require.Len(t, resp.RecentRuns, 1)
	assert.Equal(t, run.ID.String(), resp.RecentRuns[0].ID)
	assert.Equal(t, 500, resp.RecentRuns[0].InputTokens)
	assert.Equal(t, "gemini-test", resp.RecentRuns[0].Model)
}

func TestGetDashboardStatsFailure(t *testing.T) {
	handler := NewDashboardHandler(
		&fakeStatsStore{err: errors.New("connection refused")},
		&fakeRunStore{},
		&fakeArtifactStore{},
		&fakeQueue{},
		nil,
	)

	w := httptest.NewRecorder()
	handler.GetDashboard(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp shared.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Failed to load dashboard", resp.Error)
}

func newVersionsRouter(handler *DashboardHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/dashboard/versions/{pageID}", handler.GetVersions)
	return r
}

func TestGetVersions(t *testing.T) {
	runID := uuid.New()
	handler := NewDashboardHandler(
		&fakeStatsStore{},
		&fakeRunStore{},
		&fakeArtifactStore{versions: []*store.ArtifactVersion{
			{PageID: "page-1", Action: "checklist", Version: 2, RunID: runID},
			{PageID: "page-1", Action: "checklist", Version: 1, RunID: runID},
			{PageID: "page-2", Action: "tree", Version: 1, RunID: runID},
		}},
		&fakeQueue{},
		nil,
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/versions/page-1", nil)
	newVersionsRouter(handler).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp VersionHistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "page-1", resp.PageID)
	require.Len(t, resp.Versions, 2)
	assert.Equal(t, 2, resp.Versions[0].Version)
	assert.Equal(t, "checklist", resp.Versions[0].Action)
}

func TestGetVersionsEmpty(t *testing.T) {
	handler := NewDashboardHandler(
		&fakeStatsStore{},
		&fakeRunStore{},
		&fakeArtifactStore{},
		&fakeQueue{},
		nil,
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/versions/page-9", nil)
	newVersionsRouter(handler).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp VersionHistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.Versions)
}
