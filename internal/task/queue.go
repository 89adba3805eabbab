package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lecternhq/lectern-api/internal/domain"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Handler processes one job. It owns the job's full lifecycle including
// status updates; the queue only dispatches.
type Handler func(ctx context.Context, job *domain.Job)

// Queue is a buffered FIFO job queue with a single worker goroutine.
// One worker is deliberate: it serializes pipeline runs so concurrent
// jobs cannot race on the same workspace page, and keeps the LLM and
// workspace request rates bounded by a single in-flight job.
type Queue struct {
	jobs    chan *domain.Job
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates a queue with the given buffer size.
// If logger is nil, a default logger will be used.
func NewQueue(size int, handler Handler, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:    make(chan *domain.Job, size),
		handler: handler,
		logger:  logger.With(slog.String("component", "job_queue")),
	}
}

// SetHandler replaces the queue's handler. It must be called before
// Start; the queue and the pipeline reference each other, so one of them
// has to be wired after construction.
func (q *Queue) SetHandler(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		panic("SetHandler called on a started queue")
	}
	q.handler = handler
}

// Enqueue adds a job to the tail of the queue without blocking.
// Returns ErrQueueFull when the buffer is at capacity and ErrQueueClosed
// after Stop.
func (q *Queue) Enqueue(job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("job enqueued",
			slog.String("job_id", job.ID.String()),
			slog.String("action", string(job.Action)),
			slog.Int("queue_len", len(q.jobs)),
			slog.Int("queue_cap", cap(q.jobs)))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Pending returns the number of jobs waiting in the buffer. The job
// currently being processed is not counted.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Start launches the worker goroutine. Calling Start again on a running
// queue is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})

	go q.worker(ctx)
	q.logger.Info("job queue started", slog.Int("queue_cap", cap(q.jobs)))
}

// Stop closes the queue and cancels the worker context. The in-flight
// job observes the cancellation and hands back control; jobs still
// buffered are abandoned, not run. Restart recovery is a manual retry
// through the job API. Calling Stop more than once is a no-op.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	q.mu.Unlock()

	if !started {
		return
	}

	q.cancel()
	<-q.done
	q.logger.Info("job queue stopped", slog.Int("abandoned", len(q.jobs)))
}

// worker runs queued jobs one at a time, in arrival order, until the
// queue context is cancelled.
func (q *Queue) worker(ctx context.Context) {
	defer close(q.done)

	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.logger.Info("dispatching job",
				slog.String("job_id", job.ID.String()),
				slog.String("page_id", job.PageID),
				slog.String("action", string(job.Action)),
				slog.Int("pending", len(q.jobs)))

			q.handler(ctx, job)
		}
	}
}
