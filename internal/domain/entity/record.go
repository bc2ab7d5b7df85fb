package entity

import "time"

// RecordStatus is the lifecycle state of a reconciled record.
type RecordStatus string

const (
	RecordProcessing      RecordStatus = "processing"
	RecordActive          RecordStatus = "active"
	RecordPaused          RecordStatus = "paused"
	RecordClosed          RecordStatus = "closed"
	RecordClosedDuplicate RecordStatus = "closed_duplicate"
)

// ReconciledRecord is the persisted source of truth for one supplier id.
// At most one record per supplier id may be processing at any moment, and a
// marketplace id is referenced by at most one non-closed-duplicate record.
type ReconciledRecord struct {
	ID            int64        `json:"id" db:"id"`
	SupplierID    string       `json:"supplier_id" db:"supplier_id"`
	MarketplaceID *string      `json:"marketplace_id,omitempty" db:"marketplace_id"`
	Status        RecordStatus `json:"status" db:"status"`
	Price         int64        `json:"price" db:"price"`
	Title         string       `json:"title" db:"title"`
	Region        string       `json:"region" db:"region"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

func (r ReconciledRecord) Live() bool {
	return r.Status != RecordClosedDuplicate
}

// CreatedWithin reports whether the record was created inside the guard
// window, meaning a concurrent pass may still be working on it.
func (r ReconciledRecord) CreatedWithin(window time.Duration) bool {
	return time.Since(r.CreatedAt) < window
}
