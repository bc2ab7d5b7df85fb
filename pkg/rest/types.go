// This file is meant to be generated from the openapi specification and be
// named types.gen.go.
package rest

// SyncRequest triggers a reconciliation pass over supplier ids.
type SyncRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// SyncAccepted is returned with 202 once the job is enqueued.
type SyncAccepted struct {
	JobID string `json:"jobId"`
}

// Job is the queryable state of one reconciliation pass.
type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	InputIDs  []string       `json:"inputIds"`
	Results   []UnitResult   `json:"results,omitempty"`
	Summary   map[string]int `json:"summary,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

// UnitResult is the terminal outcome of one supplier id within a pass.
type UnitResult struct {
	SupplierID    string `json:"supplierId"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	MarketplaceID string `json:"marketplaceId,omitempty"`
	Price         int64  `json:"price,omitempty"`
}

// Record is the persisted reconciled state for a supplier id.
type Record struct {
	SupplierID    string `json:"supplierId"`
	MarketplaceID string `json:"marketplaceId,omitempty"`
	Status        string `json:"status"`
	Price         int64  `json:"price"`
	Title         string `json:"title"`
	Region        string `json:"region"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// Error is the error response model.
type Error struct {
	// Code is a stable machine-readable error code.
	Code ErrorCode `json:"code"`

	// Message is a human-readable description (for UI display later on).
	Message string `json:"message"`
}

// ErrorCode is a stable machine-readable error code.
type ErrorCode string
