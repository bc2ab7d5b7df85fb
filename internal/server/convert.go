package server

import (
	"time"

	"git.appkode.ru/pub/go/failure"

	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/errcodes"
	"catalog_sync/pkg/lox"
	"catalog_sync/pkg/rest"
)

func newRESTJob(job entity.SyncJob) rest.Job {
	return rest.Job{
		ID:        job.ID,
		Type:      job.Type,
		Status:    string(job.Status),
		InputIDs:  job.InputIDs,
		Results:   lox.Map(job.Results, newRESTUnitResult),
		Summary:   job.Summary,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
}

func newRESTUnitResult(result entity.UnitResult) rest.UnitResult {
	return rest.UnitResult{
		SupplierID:    result.SupplierID,
		Outcome:       string(result.Outcome),
		Reason:        result.Reason,
		MarketplaceID: result.MarketplaceID,
		Price:         result.Price,
	}
}

func newRESTRecord(record entity.ReconciledRecord) rest.Record {
	rec := rest.Record{
		SupplierID: record.SupplierID,
		Status:     string(record.Status),
		Price:      record.Price,
		Title:      record.Title,
		Region:     record.Region,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  record.UpdatedAt.Format(time.RFC3339),
	}

	if record.MarketplaceID != nil {
		rec.MarketplaceID = *record.MarketplaceID
	}

	return rec
}

// httpError attaches the HTTP semantics of known domain error codes so the
// reply layer picks the right status.
func httpError(err error) error {
	switch code := domain.GetCode(err); code {
	case errcodes.JobNotFound, errcodes.RecordNotFound:
		return failure.NewNotFoundErrorFromError(err, failure.WithCode(code))
	case errcodes.JobAlreadyRunning:
		return failure.NewConflictErrorFromError(err, failure.WithCode(code))
	case errcodes.EmptyIDList, errcodes.InvalidSupplierID:
		return failure.NewInvalidArgumentErrorFromError(err, failure.WithCode(code))
	default:
		return err
	}
}
