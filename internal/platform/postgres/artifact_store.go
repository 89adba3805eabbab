package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lecternhq/lectern-api/internal/platform/logger"
	"github.com/lecternhq/lectern-api/internal/store"
)

// PostgresArtifactStore implements the store.ArtifactStore interface
// using a PostgreSQL database as the storage backend. It owns the page
// cache rows consulted during write-back and the per-action version
// counters.
type PostgresArtifactStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresArtifactStore creates a new PostgreSQL implementation of the ArtifactStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresArtifactStore(db store.DBTX, logger *slog.Logger) *PostgresArtifactStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresArtifactStore{
		db:     db,
		logger: logger.With(slog.String("component", "artifact_store")),
	}
}

// Ensure PostgresArtifactStore implements store.ArtifactStore interface
var _ store.ArtifactStore = (*PostgresArtifactStore)(nil)

// GetPageRef implements store.ArtifactStore.GetPageRef
// It returns the cached Notion page ID for the given source page and
// artifact kind. Returns store.ErrArtifactNotFound on a cache miss.
func (s *PostgresArtifactStore) GetPageRef(ctx context.Context, pageID, kind string) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT notion_page_id
		FROM artifact_pages
		WHERE page_id = $1 AND kind = $2
	`

	var notionPageID string
	err := s.db.QueryRowContext(ctx, query, pageID, kind).Scan(&notionPageID)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			log.Debug("artifact page cache miss",
				slog.String("page_id", pageID),
				slog.String("kind", kind))
			return "", store.ErrArtifactNotFound
		}

		log.Error("failed to get artifact page ref",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID),
			slog.String("kind", kind))
		return "", MapError(err)
	}

	return notionPageID, nil
}

// SetPageRef implements store.ArtifactStore.SetPageRef
// It records the Notion page created for the given source page and
// artifact kind, replacing any previous mapping.
func (s *PostgresArtifactStore) SetPageRef(ctx context.Context, pageID, kind, notionPageID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO artifact_pages (page_id, kind, notion_page_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (page_id, kind)
		DO UPDATE SET notion_page_id = EXCLUDED.notion_page_id, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, pageID, kind, notionPageID, time.Now().UTC())
	if err != nil {
		log.Error("failed to set artifact page ref",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID),
			slog.String("kind", kind))
		return MapError(err)
	}

	log.Debug("artifact page ref saved",
		slog.String("page_id", pageID),
		slog.String("kind", kind),
		slog.String("notion_page_id", notionPageID))
	return nil
}

// LatestVersion implements store.ArtifactStore.LatestVersion
// It returns the highest version number recorded for the given source
// page and action, or 0 if none exists.
func (s *PostgresArtifactStore) LatestVersion(ctx context.Context, pageID, action string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COALESCE(MAX(version), 0)
		FROM artifact_versions
		WHERE page_id = $1 AND action = $2
	`

	var version int
	err := s.db.QueryRowContext(ctx, query, pageID, action).Scan(&version)
	if err != nil {
		log.Error("failed to get latest artifact version",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID),
			slog.String("action", action))
		return 0, MapError(err)
	}

	return version, nil
}

// CreateVersion implements store.ArtifactStore.CreateVersion
// It atomically allocates the next version number for the given source
// page and action by inserting MAX(version)+1 in a single statement, so
// two concurrent allocations cannot yield the same number.
func (s *PostgresArtifactStore) CreateVersion(
	ctx context.Context,
	pageID, action string,
	runID uuid.UUID,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO artifact_versions (page_id, action, version, run_id, created_at)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4
		FROM artifact_versions
		WHERE page_id = $1 AND action = $2
		RETURNING version
	`

	var version int
	err := s.db.QueryRowContext(ctx, query, pageID, action, runID, time.Now().UTC()).Scan(&version)
	if err != nil {
		log.Error("failed to create artifact version",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID),
			slog.String("action", action),
			slog.String("run_id", runID.String()))
		return 0, MapError(err)
	}

	log.Info("artifact version allocated",
		slog.String("page_id", pageID),
		slog.String("action", action),
		slog.Int("version", version))
	return version, nil
}

// ListVersions implements store.ArtifactStore.ListVersions
// It returns every version recorded for the given source page, newest
// first within each action.
func (s *PostgresArtifactStore) ListVersions(ctx context.Context, pageID string) ([]*store.ArtifactVersion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT page_id, action, version, run_id, created_at
		FROM artifact_versions
		WHERE page_id = $1
		ORDER BY action, version DESC
	`

	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		log.Error("failed to list artifact versions",
			slog.String("error", err.Error()),
			slog.String("page_id", pageID))
		return nil, MapError(err)
	}
	defer rows.Close()

	var versions []*store.ArtifactVersion
	for rows.Next() {
		var v store.ArtifactVersion
		if err := rows.Scan(&v.PageID, &v.Action, &v.Version, &v.RunID, &v.CreatedAt); err != nil {
			log.Error("failed to scan artifact version",
				slog.String("error", err.Error()),
				slog.String("page_id", pageID))
			return nil, MapError(err)
		}
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return versions, nil
}
