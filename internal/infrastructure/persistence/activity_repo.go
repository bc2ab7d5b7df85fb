package persistence

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/errcodes"
)

// ActivityRepository appends to activity_log, the audit trail of every
// terminal per-id outcome.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Append(ctx context.Context, event entity.ActivityEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal details")
	}

	query := `
		INSERT INTO activity_log (job_id, supplier_id, step, outcome, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query,
		event.JobID, event.SupplierID, event.Step, event.Outcome, details, time.Now()); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to append activity event")
	}

	return nil
}

// ListByJob returns the trail of one pass, oldest first.
func (r *ActivityRepository) ListByJob(ctx context.Context, jobID string) ([]entity.ActivityEvent, error) {
	query := `
		SELECT id, job_id, supplier_id, step, outcome, details, created_at
		FROM activity_log
		WHERE job_id = $1
		ORDER BY id ASC`

	var schemas []activitySchema
	if err := r.db.SelectContext(ctx, &schemas, query, jobID); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list activity events")
	}

	events := make([]entity.ActivityEvent, 0, len(schemas))
	for _, s := range schemas {
		event, err := s.toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to decode activity event")
		}
		events = append(events, event)
	}

	return events, nil
}
