package entity

import "time"

// ActivityEvent is one append-only structured entry in the activity log.
type ActivityEvent struct {
	ID         int64          `json:"id"`
	JobID      string         `json:"job_id"`
	SupplierID string         `json:"supplier_id"`
	Step       string         `json:"step"`
	Outcome    string         `json:"outcome"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
