package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/lecternhq/lectern-api/internal/config"
	"github.com/lecternhq/lectern-api/internal/pipeline"
	"github.com/lecternhq/lectern-api/internal/platform/gemini"
	"github.com/lecternhq/lectern-api/internal/platform/logger"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
	"github.com/lecternhq/lectern-api/internal/platform/postgres"
	"github.com/lecternhq/lectern-api/internal/task"
)

// shutdownTimeout bounds graceful HTTP shutdown; the job queue stops
// separately by cancelling its worker.
const shutdownTimeout = 10 * time.Second

// application holds the wired dependencies of the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	queue  *task.Queue

	jobStore      *postgres.PostgresJobStore
	runStore      *postgres.PostgresRunStore
	artifactStore *postgres.PostgresArtifactStore
	statsStore    *postgres.PostgresStatsStore
}

// newApplication loads configuration and wires every component: database,
// workspace client, generator, stores, pipeline, and queue.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("model", cfg.LLM.ModelName),
		slog.String("prompt_version", cfg.LLM.PromptVersion))

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	jobStore := postgres.NewPostgresJobStore(db, log)
	runStore := postgres.NewPostgresRunStore(db, log)
	artifactStore := postgres.NewPostgresArtifactStore(db, log)
	treeNodeStore := postgres.NewPostgresTreeNodeStore(db, log)
	statsStore := postgres.NewPostgresStatsStore(db, log)

	notionClient := notion.NewClient(notion.Config{
		Token:          cfg.Notion.Token,
		RateLimit:      cfg.Notion.RateLimit,
		BlockBatchSize: cfg.Notion.BlockBatchSize,
	}, log)

	generator, err := gemini.NewGenerator(ctx, log, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	writer := pipeline.NewWriter(notionClient, artifactStore, treeNodeStore, pipeline.WriterConfig{
		TreeNodesDBID:      cfg.Notion.TreeNodesDBID,
		KnowledgePagesDBID: cfg.Notion.KnowledgePagesDBID,
	}, log)
	notes := pipeline.NewNotesFetcher(notionClient, cfg.Notion.NotesDBID, log)

	// The queue and pipeline reference each other: the queue dispatches
	// jobs into the pipeline, and the pipeline re-enqueues transient
	// failures. The handler is wired after the pipeline exists.
	queue := task.NewQueue(cfg.Job.QueueSize, nil, log)

	pipe := pipeline.New(notionClient, generator, writer, notes,
		jobStore, runStore, artifactStore, queue,
		pipeline.Config{Model: cfg.LLM.ModelName, PromptVersion: cfg.LLM.PromptVersion},
		log)

	queue.SetHandler(pipe.Process)

	return &application{
		config:        cfg,
		logger:        log,
		db:            db,
		queue:         queue,
		jobStore:      jobStore,
		runStore:      runStore,
		artifactStore: artifactStore,
		statsStore:    statsStore,
	}, nil
}

// run starts the job queue and the HTTP server, then blocks until the
// context is cancelled. Shutdown order matters: the HTTP server stops
// accepting jobs first, then the queue cancels its worker. Queued jobs
// are abandoned; they are retried through the job API.
func (app *application) run(ctx context.Context) error {
	app.queue.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("http shutdown failed", slog.String("error", err.Error()))
		}

		app.queue.Stop()

		if err := app.db.Close(); err != nil {
			app.logger.Error("database close failed", slog.String("error", err.Error()))
		}
		return nil
	})

	return g.Wait()
}
