package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

// Job is one document waiting for the pipeline.
type Job struct {
	ID            uuid.UUID
	SourceName    string
	MimeType      string
	Data          []byte
	SubscriberKey string
	SubmittedAt   time.Time
}

// Processor is the pipeline entry point the workers call.
type Processor interface {
	ProcessDocument(ctx context.Context, data []byte, mimeType, subscriberKey string) (entity.BudgetResult, error)
}

// Store is the slice of the budget repository the queue writes to.
type Store interface {
	Create(ctx context.Context, sourceName, mimeType, subscriberKey string, status constants.JobStatus) (*entity.BudgetJob, error)
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, res entity.BudgetResult) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
}

// CompletionFunc runs after a job is persisted. err is nil on success.
type CompletionFunc func(ctx context.Context, job Job, res entity.BudgetResult, err error)
