package persistence

import (
	"time"

	"catalog_sync/internal/domain/entity"
)

// recordSchema maps a reconciled_products row.
type recordSchema struct {
	ID            int64     `db:"id"`
	SupplierID    string    `db:"supplier_id"`
	MarketplaceID *string   `db:"marketplace_id"`
	Status        string    `db:"status"`
	Price         int64     `db:"price"`
	Title         string    `db:"title"`
	Region        string    `db:"region"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (s recordSchema) toDomain() entity.ReconciledRecord {
	return entity.ReconciledRecord{
		ID:            s.ID,
		SupplierID:    s.SupplierID,
		MarketplaceID: s.MarketplaceID,
		Status:        entity.RecordStatus(s.Status),
		Price:         s.Price,
		Title:         s.Title,
		Region:        s.Region,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// activitySchema maps an activity_log row.
type activitySchema struct {
	ID         int64     `db:"id"`
	JobID      string    `db:"job_id"`
	SupplierID string    `db:"supplier_id"`
	Step       string    `db:"step"`
	Outcome    string    `db:"outcome"`
	Details    []byte    `db:"details"`
	CreatedAt  time.Time `db:"created_at"`
}

func (s activitySchema) toDomain() (entity.ActivityEvent, error) {
	event := entity.ActivityEvent{
		ID:         s.ID,
		JobID:      s.JobID,
		SupplierID: s.SupplierID,
		Step:       s.Step,
		Outcome:    s.Outcome,
		CreatedAt:  s.CreatedAt,
	}

	if len(s.Details) > 0 {
		if err := json.Unmarshal(s.Details, &event.Details); err != nil {
			return entity.ActivityEvent{}, err
		}
	}

	return event, nil
}

// jobSchema maps a sync_jobs row. Results and summary are stored as JSONB.
type jobSchema struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Status    string    `db:"status"`
	InputIDs  []byte    `db:"input_ids"`
	Results   []byte    `db:"results"`
	Summary   []byte    `db:"summary"`
	Error     string    `db:"error"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s jobSchema) toDomain() (entity.SyncJob, error) {
	job := entity.SyncJob{
		ID:        s.ID,
		Type:      s.Type,
		Status:    entity.JobStatus(s.Status),
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}

	if len(s.InputIDs) > 0 {
		if err := json.Unmarshal(s.InputIDs, &job.InputIDs); err != nil {
			return entity.SyncJob{}, err
		}
	}

	if len(s.Results) > 0 {
		if err := json.Unmarshal(s.Results, &job.Results); err != nil {
			return entity.SyncJob{}, err
		}
	}

	if len(s.Summary) > 0 {
		if err := json.Unmarshal(s.Summary, &job.Summary); err != nil {
			return entity.SyncJob{}, err
		}
	}

	return job, nil
}
