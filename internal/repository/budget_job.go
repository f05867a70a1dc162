package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/db/ent/schema"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

// BudgetRepository persists pipeline runs and their priced items.
type BudgetRepository interface {
	Create(ctx context.Context, sourceName, mimeType, subscriberKey string, status constants.JobStatus) (*entity.BudgetJob, error)
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, res entity.BudgetResult) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.BudgetJob, error)
	List(ctx context.Context, limit int) ([]entity.BudgetJob, error)
	ListItems(ctx context.Context, jobID uuid.UUID) ([]entity.PricedMeasurementItem, error)
}

type budgetRepo struct {
	db  *DB
	log *slog.Logger
}

func NewBudgetRepository(db *DB, log *slog.Logger) BudgetRepository {
	if log == nil {
		log = slog.Default()
	}
	return &budgetRepo{db: db, log: log}
}

var jobColumns = []string{
	"id", "source_name", "mime_type", "subscriber_key", "status", "path",
	"page_count", "item_count", "project_type_guess", "summary",
	"error_message", "started_at", "finished_at",
}

var itemColumns = []string{
	"id", "job_id", "ord", "code", "description", "unit", "quantity", "page",
	"chapter", "section", "unit_price", "total_price", "matched_code",
	"match_confidence", "is_estimate", "match_kind", "matched_entry", "candidates",
}

// rows per INSERT, well below the bind parameter limits of both backends
const itemInsertChunk = 200

func (r *budgetRepo) builder() *entsql.DialectBuilder { return entsql.Dialect(r.db.Dialect()) }

func (r *budgetRepo) Create(ctx context.Context, sourceName, mimeType, subscriberKey string, status constants.JobStatus) (*entity.BudgetJob, error) {
	if err := schema.ValidateStatus(string(status)); err != nil {
		return nil, common.NewAppError("INVALID_STATUS", "create budget job", errors.Join(common.ErrInvalidInput, err))
	}
	job := &entity.BudgetJob{
		ID:            uuid.New(),
		SourceName:    sourceName,
		MimeType:      mimeType,
		SubscriberKey: subscriberKey,
		Status:        string(status),
		StartedAt:     time.Now().UTC(),
	}
	q, args := r.builder().Insert(schema.BudgetJobTable).
		Columns("id", "source_name", "mime_type", "subscriber_key", "status", "path", "page_count", "item_count", "project_type_guess", "started_at").
		Values(job.ID, job.SourceName, job.MimeType, job.SubscriberKey, job.Status, "", 0, 0, "", job.StartedAt).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("budget_job create failed", "source", sourceName, "err", err)
		return nil, common.NewAppError("DB_ERROR", "create budget job", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("budget_job created", "job_id", job.ID, "source", sourceName, "status", job.Status)
	return job, nil
}

func (r *budgetRepo) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	q, args := r.builder().Update(schema.BudgetJobTable).
		Set("status", string(constants.JobStatusRunning)).
		Set("started_at", time.Now().UTC()).
		Where(entsql.EQ("id", jobID)).
		Query()
	return r.execOne(ctx, r.db.Driver, q, args, jobID)
}

// FinishSuccess stores the items and the summary in one transaction.
func (r *budgetRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, res entity.BudgetResult) error {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return common.NewAppError("DB_ERROR", "begin transaction", errors.Join(common.ErrDatabase, err))
	}
	rollback := func(err error) error {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Warn("budget_job rollback failed", "job_id", jobID, "err", rbErr)
		}
		r.log.Error("budget_job finish(DONE) failed", "job_id", jobID, "err", err)
		return err
	}

	for lo := 0; lo < len(res.Items); lo += itemInsertChunk {
		hi := min(lo+itemInsertChunk, len(res.Items))
		ins := r.builder().Insert(schema.BudgetItemTable).Columns(itemColumns...)
		for _, it := range res.Items[lo:hi] {
			vals, err := itemValues(jobID, it)
			if err != nil {
				return rollback(err)
			}
			ins.Values(vals...)
		}
		q, args := ins.Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return rollback(common.NewAppError("DB_ERROR", "insert budget items", errors.Join(common.ErrDatabase, err)))
		}
	}

	q, args := r.builder().Update(schema.BudgetJobTable).
		Set("status", string(constants.JobStatusDone)).
		Set("path", res.Path).
		Set("page_count", res.PageCount).
		Set("item_count", len(res.Items)).
		Set("project_type_guess", string(res.ProjectTypeGuess)).
		Set("summary", string(summary)).
		Set("finished_at", time.Now().UTC()).
		Where(entsql.EQ("id", jobID)).
		Query()
	if err := r.execOne(ctx, tx, q, args, jobID); err != nil {
		return rollback(err)
	}
	if err := tx.Commit(); err != nil {
		return common.NewAppError("DB_ERROR", "commit budget job", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("budget_job finished (DONE)", "job_id", jobID, "items", len(res.Items))
	return nil
}

func (r *budgetRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	q, args := r.builder().Update(schema.BudgetJobTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("finished_at", time.Now().UTC()).
		Where(entsql.EQ("id", jobID)).
		Query()
	if err := r.execOne(ctx, r.db.Driver, q, args, jobID); err != nil {
		r.log.Error("budget_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("budget_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *budgetRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.BudgetJob, error) {
	b := r.builder()
	q, args := b.Select(jobColumns...).From(b.Table(schema.BudgetJobTable)).Where(entsql.EQ("id", jobID)).Query()
	jobs, err := r.queryJobs(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "budget job "+jobID.String(), common.ErrNotFound)
	}
	return &jobs[0], nil
}

func (r *budgetRepo) List(ctx context.Context, limit int) ([]entity.BudgetJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	b := r.builder()
	q, args := b.Select(jobColumns...).From(b.Table(schema.BudgetJobTable)).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	return r.queryJobs(ctx, q, args)
}

func (r *budgetRepo) ListItems(ctx context.Context, jobID uuid.UUID) ([]entity.PricedMeasurementItem, error) {
	b := r.builder()
	q, args := b.Select(itemColumns...).From(b.Table(schema.BudgetItemTable)).
		Where(entsql.EQ("job_id", jobID)).
		OrderBy("ord").
		Query()
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "list budget items", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []entity.PricedMeasurementItem
	for rows.Next() {
		var (
			it             entity.PricedMeasurementItem
			id, job        uuid.UUID
			matchKind      string
			matched, cands []byte
		)
		if err := rows.Scan(&id, &job, &it.Order, &it.Code, &it.Description, &it.Unit, &it.Quantity, &it.Page,
			&it.Chapter, &it.Section, &it.UnitPrice, &it.TotalPrice, &it.MatchedCode,
			&it.MatchConfidence, &it.IsEstimate, &matchKind, &matched, &cands); err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}
		it.MatchKind = constants.ItemKind(matchKind)
		if len(matched) > 0 {
			var p entity.CatalogProjection
			if err := json.Unmarshal(matched, &p); err != nil {
				return nil, fmt.Errorf("decode matched entry: %w", err)
			}
			it.MatchedEntry = &p
		}
		if len(cands) > 0 {
			if err := json.Unmarshal(cands, &it.Candidates); err != nil {
				return nil, fmt.Errorf("decode candidates: %w", err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *budgetRepo) queryJobs(ctx context.Context, q string, args []any) ([]entity.BudgetJob, error) {
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query budget jobs", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []entity.BudgetJob
	for rows.Next() {
		var (
			j        entity.BudgetJob
			summary  []byte
			errMsg   sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.SourceName, &j.MimeType, &j.SubscriberKey, &j.Status, &j.Path,
			&j.PageCount, &j.ItemCount, &j.ProjectTypeGuess, &summary, &errMsg, &j.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan budget job: %w", err)
		}
		if len(summary) > 0 {
			j.Summary = json.RawMessage(summary)
		}
		if errMsg.Valid {
			j.ErrorMessage = &errMsg.String
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// execOne runs an update and reports ErrNotFound when no row matched.
func (r *budgetRepo) execOne(ctx context.Context, ex dialect.ExecQuerier, q string, args []any, jobID uuid.UUID) error {
	var res sql.Result
	if err := ex.Exec(ctx, q, args, &res); err != nil {
		return common.NewAppError("DB_ERROR", "update budget job", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", "budget job "+jobID.String(), common.ErrNotFound)
	}
	return nil
}

func itemValues(jobID uuid.UUID, it entity.PricedMeasurementItem) ([]any, error) {
	var matched, cands any
	if it.MatchedEntry != nil {
		b, err := json.Marshal(it.MatchedEntry)
		if err != nil {
			return nil, fmt.Errorf("encode matched entry: %w", err)
		}
		matched = string(b)
	}
	if len(it.Candidates) > 0 {
		b, err := json.Marshal(it.Candidates)
		if err != nil {
			return nil, fmt.Errorf("encode candidates: %w", err)
		}
		cands = string(b)
	}
	return []any{
		uuid.New(), jobID, it.Order, it.Code, it.Description, it.Unit, it.Quantity, it.Page,
		it.Chapter, it.Section, it.UnitPrice, it.TotalPrice, it.MatchedCode,
		it.MatchConfidence, it.IsEstimate, string(it.MatchKind), matched, cands,
	}, nil
}
