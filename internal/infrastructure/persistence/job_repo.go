package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/errcodes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// JobRepository persists sync_jobs so progress survives a process restart.
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job entity.SyncJob) error {
	inputIDs, err := json.Marshal(job.InputIDs)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal input ids")
	}

	query := `
		INSERT INTO sync_jobs (id, type, status, input_ids, results, summary, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '[]', '{}', '', $5, $5)`

	if _, err := r.db.ExecContext(ctx, query, job.ID, job.Type, job.Status, inputIDs, time.Now()); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to create job")
	}

	return nil
}

// UpdateProgress stores the results accumulated so far. Called after every
// finished chunk so a crashed pass still leaves a usable trail.
func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, results []entity.UnitResult) error {
	encoded, err := json.Marshal(results)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal results")
	}

	query := `
		UPDATE sync_jobs
		SET results = $1, updated_at = $2
		WHERE id = $3`

	return r.execUpdate(ctx, query, encoded, time.Now(), jobID)
}

func (r *JobRepository) Complete(ctx context.Context, jobID string, results []entity.UnitResult) error {
	return r.finish(ctx, jobID, entity.JobCompleted, results, "")
}

func (r *JobRepository) Fail(ctx context.Context, jobID string, results []entity.UnitResult, reason string) error {
	return r.finish(ctx, jobID, entity.JobFailed, results, reason)
}

func (r *JobRepository) finish(ctx context.Context, jobID string, status entity.JobStatus, results []entity.UnitResult, jobErr string) error {
	encoded, err := json.Marshal(results)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal results")
	}

	summary, err := json.Marshal(entity.Summarize(results))
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal summary")
	}

	query := `
		UPDATE sync_jobs
		SET status = $1, results = $2, summary = $3, error = $4, updated_at = $5
		WHERE id = $6`

	return r.execUpdate(ctx, query, status, encoded, summary, jobErr, time.Now(), jobID)
}

func (r *JobRepository) GetByID(ctx context.Context, jobID string) (entity.SyncJob, error) {
	query := `
		SELECT id, type, status, input_ids, results, summary, error, created_at, updated_at
		FROM sync_jobs
		WHERE id = $1`

	var schema jobSchema
	if err := r.db.GetContext(ctx, &schema, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.SyncJob{}, domain.NewError(errcodes.JobNotFound, "job not found")
		}

		return entity.SyncJob{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get job")
	}

	job, err := schema.toDomain()
	if err != nil {
		return entity.SyncJob{}, domain.WrapError(err, errcodes.InternalServerError, "failed to decode job")
	}

	return job, nil
}

func (r *JobRepository) execUpdate(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to update job")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
	}

	if rows == 0 {
		return domain.NewError(errcodes.JobNotFound, "job not found")
	}

	return nil
}
