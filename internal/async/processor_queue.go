package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
)

var ErrQueueClosed = errors.New("queue is shutting down")

type ProcessorQueue struct {
	proc       Processor
	store      Store
	logger     *slog.Logger
	workers    int
	timeout    time.Duration
	onComplete CompletionFunc

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithCompletion(fn CompletionFunc) Option {
	return func(q *ProcessorQueue) { q.onComplete = fn }
}

func NewProcessorQueue(proc Processor, store Store, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		store:   store,
		logger:  logger,
		workers: 2,
		timeout: 20 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithJobID(common.WithRequestID(ctx, job.ID.String()), job.ID.String())

	if err := q.store.MarkRunning(ctx, job.ID); err != nil {
		q.logger.Error("job.mark_running.failed", "worker_id", workerID, "job_id", job.ID, "error", err)
	}
	start := time.Now()
	res, err := q.proc.ProcessDocument(ctx, job.Data, job.MimeType, job.SubscriberKey)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.ID, "source", job.SourceName, "error", err)
		if ferr := q.store.FinishFailure(ctx, job.ID, err.Error()); ferr != nil {
			q.logger.Error("job.finish_failure.failed", "job_id", job.ID, "error", ferr)
		}
	} else {
		if serr := q.store.FinishSuccess(ctx, job.ID, res); serr != nil {
			q.logger.Error("job.finish_success.failed", "job_id", job.ID, "error", serr)
			err = serr
		} else {
			q.logger.Info("processed document successfully",
				"worker_id", workerID,
				"job_id", job.ID,
				"source", job.SourceName,
				"items", len(res.Items),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}
	}
	if q.onComplete != nil {
		q.onComplete(ctx, job, res, err)
	}
}

// Submit records a QUEUED job and hands it to the workers. It blocks when the
// buffer is full.
func (q *ProcessorQueue) Submit(ctx context.Context, sourceName, mimeType string, data []byte, subscriberKey string) (uuid.UUID, error) {
	if q.isClosed() {
		return uuid.Nil, ErrQueueClosed
	}
	mimeType = constants.NormalizeMime(mimeType)
	row, err := q.store.Create(ctx, sourceName, mimeType, subscriberKey, constants.JobStatusQueued)
	if err != nil {
		return uuid.Nil, err
	}
	job := Job{
		ID:            row.ID,
		SourceName:    sourceName,
		MimeType:      mimeType,
		Data:          data,
		SubscriberKey: subscriberKey,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		_ = q.store.FinishFailure(ctx, row.ID, err.Error())
		return uuid.Nil, err
	}
	return row.ID, nil
}

func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for processing", "job_id", job.ID, "source", job.SourceName)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
