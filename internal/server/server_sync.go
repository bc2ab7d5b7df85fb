package server

import (
	"context"
	"fmt"
	"net/http"

	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/httpx/reply"
	"catalog_sync/pkg/httpx/req"
	"catalog_sync/pkg/rest"
)

type launcher interface {
	Launch(ctx context.Context, ids []string) (string, error)
}

type jobReader interface {
	GetByID(ctx context.Context, jobID string) (entity.SyncJob, error)
}

type recordReader interface {
	GetLiveBySupplierID(ctx context.Context, supplierID string) (entity.ReconciledRecord, error)
}

type SyncServer struct {
	launcher launcher
	jobs     jobReader
	records  recordReader
}

func NewSyncServer(launcher launcher, jobs jobReader, records recordReader) SyncServer {
	return SyncServer{
		launcher: launcher,
		jobs:     jobs,
		records:  records,
	}
}

func (s SyncServer) postV1Sync(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.SyncRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	jobID, err := s.launcher.Launch(ctx, request.IDs)
	if err != nil {
		return httpError(fmt.Errorf("launcher.Launch: %w", err))
	}

	reply.JSON(ctx, w, http.StatusAccepted, rest.SyncAccepted{JobID: jobID})

	return nil
}

func (s SyncServer) getV1Job(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	job, err := s.jobs.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		return httpError(fmt.Errorf("jobs.GetByID: %w", err))
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTJob(job))

	return nil
}

func (s SyncServer) getV1Record(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	record, err := s.records.GetLiveBySupplierID(ctx, r.PathValue("supplierId"))
	if err != nil {
		return httpError(fmt.Errorf("records.GetLiveBySupplierID: %w", err))
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTRecord(record))

	return nil
}
