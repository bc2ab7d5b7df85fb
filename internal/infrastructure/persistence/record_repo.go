package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/errcodes"
)

// RecordRepository persists reconciled_products, the single source of truth
// for which pass owns a supplier id right now.
type RecordRepository struct {
	db *sqlx.DB
}

func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `id, supplier_id, marketplace_id, status, price, title, region, created_at, updated_at`

// Reserve atomically claims a supplier id by inserting a processing record.
// The partial unique index on processing records makes concurrent
// reservations conflict; the loser gets reserved=false. This must stay a
// single conditional insert, never a read-then-write.
func (r *RecordRepository) Reserve(ctx context.Context, supplierID string) (entity.ReconciledRecord, bool, error) {
	query := `
		INSERT INTO reconciled_products (supplier_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (supplier_id) WHERE status = 'processing' DO NOTHING
		RETURNING ` + recordColumns

	var schema recordSchema
	err := r.db.GetContext(ctx, &schema, query, supplierID, entity.RecordProcessing, time.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict: another record already owns the id.
			return entity.ReconciledRecord{}, false, nil
		}

		return entity.ReconciledRecord{}, false,
			domain.WrapError(err, errcodes.InternalServerError, "failed to reserve supplier id")
	}

	return schema.toDomain(), true, nil
}

// ListLive returns every non-closed-duplicate record for the supplier id,
// newest first.
func (r *RecordRepository) ListLive(ctx context.Context, supplierID string) ([]entity.ReconciledRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM reconciled_products
		WHERE supplier_id = $1 AND status <> 'closed_duplicate'
		ORDER BY created_at DESC, price ASC`

	var schemas []recordSchema
	if err := r.db.SelectContext(ctx, &schemas, query, supplierID); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list records")
	}

	records := make([]entity.ReconciledRecord, 0, len(schemas))
	for _, s := range schemas {
		records = append(records, s.toDomain())
	}

	return records, nil
}

// ListLiveBySupplierIDs bulk-loads the live records of a chunk.
func (r *RecordRepository) ListLiveBySupplierIDs(ctx context.Context, supplierIDs []string) ([]entity.ReconciledRecord, error) {
	if len(supplierIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+recordColumns+`
		FROM reconciled_products
		WHERE supplier_id IN (?) AND status <> 'closed_duplicate'`, supplierIDs)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to build query")
	}

	var schemas []recordSchema
	if err := r.db.SelectContext(ctx, &schemas, r.db.Rebind(query), args...); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to bulk load records")
	}

	records := make([]entity.ReconciledRecord, 0, len(schemas))
	for _, s := range schemas {
		records = append(records, s.toDomain())
	}

	return records, nil
}

// GetLiveBySupplierID returns the live record for a supplier id.
func (r *RecordRepository) GetLiveBySupplierID(ctx context.Context, supplierID string) (entity.ReconciledRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM reconciled_products
		WHERE supplier_id = $1 AND status <> 'closed_duplicate'
		ORDER BY created_at DESC
		LIMIT 1`

	var schema recordSchema
	if err := r.db.GetContext(ctx, &schema, query, supplierID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ReconciledRecord{}, domain.NewError(errcodes.RecordNotFound, "record not found")
		}

		return entity.ReconciledRecord{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get record")
	}

	return schema.toDomain(), nil
}

// Complete finishes a reservation after a successful marketplace create.
func (r *RecordRepository) Complete(ctx context.Context, recordID int64, marketplaceID string, price int64, title, region string) error {
	query := `
		UPDATE reconciled_products
		SET marketplace_id = $1, status = $2, price = $3, title = $4, region = $5, updated_at = $6
		WHERE id = $7`

	return r.execUpdate(ctx, query,
		marketplaceID, entity.RecordActive, price, title, region, time.Now(), recordID)
}

// UpdateListing stores the new price/title after a successful marketplace
// update.
func (r *RecordRepository) UpdateListing(ctx context.Context, recordID int64, price int64, title string) error {
	query := `
		UPDATE reconciled_products
		SET price = $1, title = $2, status = $3, updated_at = $4
		WHERE id = $5`

	return r.execUpdate(ctx, query, price, title, entity.RecordActive, time.Now(), recordID)
}

// SetStatus moves a record to a new lifecycle status.
func (r *RecordRepository) SetStatus(ctx context.Context, recordID int64, status entity.RecordStatus) error {
	query := `
		UPDATE reconciled_products
		SET status = $1, updated_at = $2
		WHERE id = $3`

	return r.execUpdate(ctx, query, status, time.Now(), recordID)
}

// Release drops an incomplete reservation so a later pass can retry. Records
// that already carry a marketplace id are kept.
func (r *RecordRepository) Release(ctx context.Context, recordID int64) error {
	query := `
		DELETE FROM reconciled_products
		WHERE id = $1 AND status = $2 AND marketplace_id IS NULL`

	if _, err := r.db.ExecContext(ctx, query, recordID, entity.RecordProcessing); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to release reservation")
	}

	return nil
}

func (r *RecordRepository) execUpdate(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to execute update")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
	}

	if rows == 0 {
		return domain.NewError(errcodes.RecordNotFound, "record not found")
	}

	return nil
}
