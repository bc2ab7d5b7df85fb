package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/internal/server"
	"catalog_sync/pkg/errcodes"
	"catalog_sync/pkg/rest"
	"catalog_sync/pkg/tests"
)

type fakeLauncher struct {
	jobID string
	err   error
	ids   []string
}

func (f *fakeLauncher) Launch(_ context.Context, ids []string) (string, error) {
	f.ids = ids

	if f.err != nil {
		return "", f.err
	}

	return f.jobID, nil
}

type fakeJobs struct {
	job entity.SyncJob
	err error
}

func (f *fakeJobs) GetByID(context.Context, string) (entity.SyncJob, error) {
	return f.job, f.err
}

type fakeRecords struct {
	record entity.ReconciledRecord
	err    error
}

func (f *fakeRecords) GetLiveBySupplierID(context.Context, string) (entity.ReconciledRecord, error) {
	return f.record, f.err
}

func newTestAPI(t *testing.T, launcher *fakeLauncher, jobs *fakeJobs, records *fakeRecords) tests.APIClient {
	t.Helper()

	router := chi.NewRouter()
	server.NewServer(server.NewSyncServer(launcher, jobs, records)).RegisterRoutes(router)

	httpServer := httptest.NewServer(router)
	t.Cleanup(httpServer.Close)

	return tests.NewAPIClient(httpServer.URL, nil)
}

func TestPostV1Sync(t *testing.T) {
	rq := require.New(t)

	launcher := &fakeLauncher{jobID: "job-42"}
	api := newTestAPI(t, launcher, &fakeJobs{}, &fakeRecords{})

	var accepted rest.SyncAccepted
	resp, err := api.Post(context.Background(), "/v1/sync", nil,
		rest.SyncRequest{IDs: []string{"p1", "p2"}}, &accepted, nil)
	rq.NoError(err)
	rq.Equal(http.StatusAccepted, resp.StatusCode)
	rq.Equal("job-42", accepted.JobID)
	rq.Equal([]string{"p1", "p2"}, launcher.ids)
}

func TestPostV1SyncValidation(t *testing.T) {
	rq := require.New(t)

	testcases := []struct {
		name string
		body string
	}{
		{name: "empty list", body: `{"ids":[]}`},
		{name: "missing field", body: `{}`},
		{name: "blank id", body: `{"ids":[""]}`},
		{name: "malformed json", body: `{"ids":`},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			launcher := &fakeLauncher{jobID: "job-42"}
			api := newTestAPI(t, launcher, &fakeJobs{}, &fakeRecords{})

			resp, err := api.PostJSON(context.Background(), "/v1/sync", nil, tc.body, nil, nil)
			rq.NoError(err)
			rq.Equal(http.StatusBadRequest, resp.StatusCode)
			rq.Nil(launcher.ids)
		})
	}
}

func TestPostV1SyncConflict(t *testing.T) {
	rq := require.New(t)

	launcher := &fakeLauncher{
		err: domain.NewError(errcodes.JobAlreadyRunning, "a pass of this type is already running"),
	}
	api := newTestAPI(t, launcher, &fakeJobs{}, &fakeRecords{})

	resp, err := api.Post(context.Background(), "/v1/sync", nil,
		rest.SyncRequest{IDs: []string{"p1"}}, nil, nil)
	rq.NoError(err)
	rq.Equal(http.StatusConflict, resp.StatusCode)
}

func TestGetV1Job(t *testing.T) {
	rq := require.New(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{job: entity.SyncJob{
		ID:       "job-42",
		Type:     "catalog:sync",
		Status:   entity.JobCompleted,
		InputIDs: []string{"p1"},
		Results: []entity.UnitResult{
			{SupplierID: "p1", Outcome: entity.OutcomePublished, MarketplaceID: "m1", Price: 18990},
		},
		Summary:   map[string]int{"published": 1},
		CreatedAt: now,
		UpdatedAt: now,
	}}
	api := newTestAPI(t, &fakeLauncher{}, jobs, &fakeRecords{})

	var job rest.Job
	resp, err := api.Get(context.Background(), "/v1/jobs/job-42", nil, &job, nil)
	rq.NoError(err)
	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal("job-42", job.ID)
	rq.Equal("completed", job.Status)
	rq.Len(job.Results, 1)
	rq.Equal("published", job.Results[0].Outcome)
	rq.Equal(int64(18990), job.Results[0].Price)
	rq.Equal(1, job.Summary["published"])
}

func TestGetV1JobNotFound(t *testing.T) {
	rq := require.New(t)

	jobs := &fakeJobs{err: domain.NewError(errcodes.JobNotFound, "job not found")}
	api := newTestAPI(t, &fakeLauncher{}, jobs, &fakeRecords{})

	resp, err := api.Get(context.Background(), "/v1/jobs/ghost", nil, nil, nil)
	rq.NoError(err)
	rq.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestGetV1Record(t *testing.T) {
	rq := require.New(t)

	marketplaceID := "m1"
	records := &fakeRecords{record: entity.ReconciledRecord{
		SupplierID:    "p1",
		MarketplaceID: &marketplaceID,
		Status:        entity.RecordActive,
		Price:         18990,
		Title:         "Elden Ring (Steam)",
		Region:        "Region Free",
	}}
	api := newTestAPI(t, &fakeLauncher{}, &fakeJobs{}, records)

	var record rest.Record
	resp, err := api.Get(context.Background(), "/v1/records/p1", nil, &record, nil)
	rq.NoError(err)
	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal("p1", record.SupplierID)
	rq.Equal("m1", record.MarketplaceID)
	rq.Equal("active", record.Status)
	rq.Equal(int64(18990), record.Price)
}

func TestGetV1RecordNotFound(t *testing.T) {
	rq := require.New(t)

	records := &fakeRecords{err: domain.NewError(errcodes.RecordNotFound, "record not found")}
	api := newTestAPI(t, &fakeLauncher{}, &fakeJobs{}, records)

	resp, err := api.Get(context.Background(), "/v1/records/ghost", nil, nil, nil)
	rq.NoError(err)
	rq.Equal(http.StatusNotFound, resp.StatusCode)
}
