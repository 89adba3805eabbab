package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lecternhq/lectern-api/internal/domain"
	"github.com/lecternhq/lectern-api/internal/generation"
	"github.com/lecternhq/lectern-api/internal/platform/notion"
	"github.com/lecternhq/lectern-api/internal/store"
)

const (
	// maxPromptTokens bounds the estimated size of the generation input.
	maxPromptTokens = 100_000

	// snapshotLimit caps the output snapshot stored with a run.
	snapshotLimit = 10_000

	// errorMessageLimit caps error text recorded on jobs and runs.
	errorMessageLimit = 500
)

// Enqueuer re-queues a job after a transient failure. The job queue
// implements it.
type Enqueuer interface {
	Enqueue(job *domain.Job) error
}

// Config carries the pipeline identity settings recorded on each run.
type Config struct {
	Model         string
	PromptVersion string
}

// Pipeline executes one job end to end. It is driven by the single queue
// worker, so at most one Process call runs at a time.
type Pipeline struct {
	client    NotionAPI
	generator generation.Generator
	writer    *Writer
	notes     *NotesFetcher
	jobs      store.JobStore
	runs      store.RunStore
	artifacts store.ArtifactStore
	enqueuer  Enqueuer
	cfg       Config
	logger    *slog.Logger
}

// New creates a Pipeline.
// If logger is nil, a default logger will be used.
func New(
	client NotionAPI,
	generator generation.Generator,
	writer *Writer,
	notes *NotesFetcher,
	jobs store.JobStore,
	runs store.RunStore,
	artifacts store.ArtifactStore,
	enqueuer Enqueuer,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		client:    client,
		generator: generator,
		writer:    writer,
		notes:     notes,
		jobs:      jobs,
		runs:      runs,
		artifacts: artifacts,
		enqueuer:  enqueuer,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "pipeline")),
	}
}

// Process runs the pipeline for one job: record the run, mark the page,
// fetch and normalize content, generate, and write back. Failures are
// classified terminal or transient; transient failures re-queue the job
// at the tail while attempts remain.
func (p *Pipeline) Process(ctx context.Context, job *domain.Job) {
	log := p.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("page_id", job.PageID),
		slog.String("action", string(job.Action)))

	run := domain.NewRun(job, p.cfg.Model, p.cfg.PromptVersion)
	if err := p.runs.Create(ctx, run); err != nil {
		log.ErrorContext(ctx, "failed to create run record", slog.String("error", err.Error()))
		return
	}

	err := p.jobs.UpdateStatus(ctx, job.ID, store.JobStatusUpdate{
		Status:            domain.JobStatusRunning,
		IncrementAttempts: true,
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to mark job running", slog.String("error", err.Error()))
		return
	}
	job.Status = domain.JobStatusRunning
	job.Attempts++

	log.InfoContext(ctx, "job started", slog.Int("attempt", job.Attempts))

	if err := p.execute(ctx, job, run, log); err != nil {
		p.handleFailure(ctx, job, run, err, log)
		return
	}
}

// execute runs the pipeline stages, finishing the run and job on
// success. Any returned error goes through failure classification.
func (p *Pipeline) execute(ctx context.Context, job *domain.Job, run *domain.Run, log *slog.Logger) error {
	_, err := p.client.UpdatePageProperties(ctx, job.PageID, map[string]notion.PropertyValue{
		propAIStage: notion.SelectProperty(string(domain.StageRunning)),
	})
	if err != nil {
		return fmt.Errorf("failed to mark page running: %w", err)
	}

	// Approve needs no generation, only the cascade.
	if job.Action == domain.ActionApprove {
		if err := p.writer.Approve(ctx, job.PageID, run.ID); err != nil {
			return err
		}
		return p.finishSuccess(ctx, job, run, nil, log)
	}

	page, err := p.client.GetPage(ctx, job.PageID)
	if err != nil {
		return fmt.Errorf("failed to fetch page: %w", err)
	}
	blocks, err := p.client.GetBlocks(ctx, job.PageID)
	if err != nil {
		return fmt.Errorf("failed to fetch page content: %w", err)
	}

	meta := ExtractMetadata(page)

	markdown := NormalizeBlocks(blocks)
	if strings.TrimSpace(markdown) == "" {
		return ErrEmptyContent
	}

	notes := p.notes.FetchNotes(ctx, job.PageID)
	input := BuildPromptInput(markdown, meta, notes)
	log.InfoContext(ctx, "content prepared",
		slog.Int("input_chars", len(input)),
		slog.Int("notes", len(notes)))

	estTokens := len(input) / 4
	if estTokens > maxPromptTokens {
		return fmt.Errorf("%w: ~%d tokens", ErrContentTooLarge, estTokens)
	}

	version, err := p.artifacts.CreateVersion(ctx, job.PageID, string(job.Action), run.ID)
	if err != nil {
		return fmt.Errorf("failed to allocate version: %w", err)
	}

	log.InfoContext(ctx, "generating artifact", slog.Int("version", version))
	result, err := p.generator.Generate(ctx, job.Action, input)
	if err != nil {
		return err
	}
	run.InputTokens = result.InputTokens
	run.OutputTokens = result.OutputTokens

	if err := p.writeBack(ctx, job, result.Data, run, version); err != nil {
		return err
	}

	return p.finishSuccess(ctx, job, run, result.Data, log)
}

// writeBack decodes the validated output into its typed document and
// dispatches to the writer.
func (p *Pipeline) writeBack(
	ctx context.Context,
	job *domain.Job,
	data json.RawMessage,
	run *domain.Run,
	version int,
) error {
	switch job.Action {
	case domain.ActionChecklist:
		var doc domain.ChecklistDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode checklist output: %w", err)
		}
		_, err := p.writer.WriteChecklist(ctx, job.PageID, &doc, run.ID, version)
		return err

	case domain.ActionTree:
		var doc domain.TreeDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode tree output: %w", err)
		}
		_, err := p.writer.WriteTree(ctx, job.PageID, &doc, run.ID, version)
		return err

	case domain.ActionPages:
		var doc domain.PagesDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode pages output: %w", err)
		}
		_, err := p.writer.WritePages(ctx, job.PageID, &doc, run.ID, version)
		return err

	case domain.ActionFlashcards:
		var doc domain.FlashcardsDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode flashcards output: %w", err)
		}
		_, err := p.writer.WriteFlashcards(ctx, job.PageID, &doc, run.ID, version)
		return err

	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidActionType, job.Action)
	}
}

func (p *Pipeline) finishSuccess(
	ctx context.Context,
	job *domain.Job,
	run *domain.Run,
	output json.RawMessage,
	log *slog.Logger,
) error {
	snapshot := notion.Truncate(string(output), snapshotLimit)

	err := p.runs.Finish(ctx, run.ID, store.RunOutcome{
		Status:         domain.JobStatusSuccess,
		InputTokens:    run.InputTokens,
		OutputTokens:   run.OutputTokens,
		OutputSnapshot: snapshot,
	})
	if err != nil {
		return err
	}

	err = p.jobs.UpdateStatus(ctx, job.ID, store.JobStatusUpdate{Status: domain.JobStatusSuccess})
	if err != nil {
		return err
	}
	job.Status = domain.JobStatusSuccess

	log.InfoContext(ctx, "job completed",
		slog.Int("input_tokens", run.InputTokens),
		slog.Int("output_tokens", run.OutputTokens))
	return nil
}

// handleFailure classifies the error and either re-queues the job or
// marks it terminally failed with the error written back to the page.
func (p *Pipeline) handleFailure(
	ctx context.Context,
	job *domain.Job,
	run *domain.Run,
	failure error,
	log *slog.Logger,
) {
	message := notion.Truncate(failure.Error(), errorMessageLimit)

	if isTerminal(failure) {
		log.ErrorContext(ctx, "job failed terminally", slog.String("error", message))
		p.finishFailure(ctx, job, run, message, log)
		return
	}

	if job.Attempts < job.MaxAttempts {
		log.WarnContext(ctx, "transient failure, re-queueing job",
			slog.String("error", message),
			slog.Int("attempt", job.Attempts),
			slog.Int("max_attempts", job.MaxAttempts))

		err := p.runs.Finish(ctx, run.ID, store.RunOutcome{
			Status: domain.JobStatusFailed,
			Error:  message,
		})
		if err != nil {
			log.ErrorContext(ctx, "failed to finish run", slog.String("error", err.Error()))
		}

		err = p.jobs.UpdateStatus(ctx, job.ID, store.JobStatusUpdate{
			Status: domain.JobStatusQueued,
			Error:  message,
		})
		if err != nil {
			log.ErrorContext(ctx, "failed to re-queue job", slog.String("error", err.Error()))
			return
		}
		job.Status = domain.JobStatusQueued

		if err := p.enqueuer.Enqueue(job); err != nil {
			log.ErrorContext(ctx, "queue rejected re-queued job", slog.String("error", err.Error()))
			p.finishFailure(ctx, job, run, message, log)
		}
		return
	}

	log.ErrorContext(ctx, "job failed after final attempt", slog.String("error", message))
	p.finishFailure(ctx, job, run, message, log)
}

func (p *Pipeline) finishFailure(
	ctx context.Context,
	job *domain.Job,
	run *domain.Run,
	message string,
	log *slog.Logger,
) {
	err := p.runs.Finish(ctx, run.ID, store.RunOutcome{
		Status: domain.JobStatusFailed,
		Error:  message,
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to finish run", slog.String("error", err.Error()))
	}

	err = p.jobs.UpdateStatus(ctx, job.ID, store.JobStatusUpdate{
		Status: domain.JobStatusFailed,
		Error:  message,
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to mark job failed", slog.String("error", err.Error()))
	}
	job.Status = domain.JobStatusFailed

	p.writer.WriteError(ctx, job.PageID, message)
}

// isTerminal reports whether retrying the job could possibly help.
// Schema validation failures and input problems are terminal; everything
// else (network, rate limit exhaustion, stores) is assumed transient.
func isTerminal(err error) bool {
	var schemaErr *generation.SchemaValidationError
	if errors.As(err, &schemaErr) {
		return true
	}
	return errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLarge) ||
		errors.Is(err, generation.ErrContentBlocked)
}
