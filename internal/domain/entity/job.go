package entity

import "time"

// JobStatus is the lifecycle state of one reconciliation pass.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Outcome is the terminal result class of one supplier id.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeUpdated   Outcome = "updated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeError     Outcome = "error"
)

// Skip and error reasons reported in unit results and activity events.
const (
	ReasonConflict     = "conflict"
	ReasonRecent       = "recent"
	ReasonNotFound     = "not_found"
	ReasonInvalid      = "invalid"
	ReasonRegion       = "region"
	ReasonFX           = "fx"
	ReasonPriceRange   = "price_range"
	ReasonPriceOutlier = "price_outlier"
	ReasonNotActive    = "not_active"
	ReasonUpToDate     = "up_to_date"
	ReasonSKUDuplicate = "sku_duplicate"
	ReasonTimeout      = "timeout"
	ReasonInternal     = "internal"
)

// UnitResult is the terminal outcome of one supplier id within a pass.
type UnitResult struct {
	SupplierID    string  `json:"supplier_id"`
	Outcome       Outcome `json:"outcome"`
	Reason        string  `json:"reason,omitempty"`
	MarketplaceID string  `json:"marketplace_id,omitempty"`
	Price         int64   `json:"price,omitempty"`
}

// SyncJob is the persisted progress record of one reconciliation pass.
type SyncJob struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Status    JobStatus      `json:"status"`
	InputIDs  []string       `json:"input_ids"`
	Results   []UnitResult   `json:"results"`
	Summary   map[string]int `json:"summary"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Summarize aggregates per-outcome counts, keyed by outcome or
// outcome:reason for skips.
func Summarize(results []UnitResult) map[string]int {
	summary := make(map[string]int, len(results))

	for _, result := range results {
		key := string(result.Outcome)
		if result.Reason != "" {
			key += ":" + result.Reason
		}
		summary[key]++
	}

	return summary
}
