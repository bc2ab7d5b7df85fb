package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"catalog_sync/internal/config"
	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/errcodes"
)

type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	knownFor  map[string][]entity.ReconciledRecord

	fatalFor map[string]error
	panicFor map[string]bool
	delayFor map[string]time.Duration
}

func (f *fakeProcessor) Process(_ context.Context, _, supplierID string, known []entity.ReconciledRecord) (entity.UnitResult, error) {
	if delay, ok := f.delayFor[supplierID]; ok {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.processed = append(f.processed, supplierID)
	if f.knownFor == nil {
		f.knownFor = map[string][]entity.ReconciledRecord{}
	}
	f.knownFor[supplierID] = known
	f.mu.Unlock()

	if f.panicFor[supplierID] {
		panic("boom")
	}

	if err, ok := f.fatalFor[supplierID]; ok {
		return entity.UnitResult{}, err
	}

	return entity.UnitResult{SupplierID: supplierID, Outcome: entity.OutcomePublished}, nil
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.processed)
}

type fakeJobStore struct {
	mu sync.Mutex

	progress  [][]entity.UnitResult
	completed []entity.UnitResult
	failed    []entity.UnitResult
	failMsg   string
	done      entity.JobStatus
}

func (f *fakeJobStore) Create(context.Context, entity.SyncJob) error { return nil }

func (f *fakeJobStore) UpdateProgress(_ context.Context, _ string, results []entity.UnitResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make([]entity.UnitResult, len(results))
	copy(snapshot, results)
	f.progress = append(f.progress, snapshot)

	return nil
}

func (f *fakeJobStore) Complete(_ context.Context, _ string, results []entity.UnitResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completed = results
	f.done = entity.JobCompleted

	return nil
}

func (f *fakeJobStore) Fail(_ context.Context, _ string, results []entity.UnitResult, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failed = results
	f.failMsg = reason
	f.done = entity.JobFailed

	return nil
}

type fakePreloader struct {
	records []entity.ReconciledRecord
	err     error
}

func (f fakePreloader) ListLiveBySupplierIDs(context.Context, []string) ([]entity.ReconciledRecord, error) {
	return f.records, f.err
}

type fakeSettings struct {
	settings config.Settings
	panicked bool
	panicOn  bool
}

func (f *fakeSettings) Current(context.Context) config.Settings {
	if f.panicOn && !f.panicked {
		f.panicked = true
		panic("settings store exploded")
	}

	return f.settings
}

type fakeRegistry struct {
	mu       sync.Mutex
	denied   bool
	acquired int
	released int
}

func (f *fakeRegistry) Acquire(context.Context, string, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.denied {
		return false, nil
	}

	f.acquired++

	return true, nil
}

func (f *fakeRegistry) Release(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.released++

	return nil
}

func (f *fakeRegistry) Running(context.Context, string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.denied {
		return "job-running", true, nil
	}

	return "", false, nil
}

func testPipeline() config.Pipeline {
	return config.Pipeline{
		ChunkSize:    3,
		UnitTimeout:  time.Second,
		ChunkTimeout: time.Minute,
	}
}

func newOrchestrator(processor *fakeProcessor, jobs *fakeJobStore, registry *fakeRegistry) *Orchestrator {
	return NewOrchestrator(
		processor, jobs, fakePreloader{},
		&fakeSettings{settings: config.Settings{Concurrency: 2, BatchIntervalMs: 1}},
		registry, testPipeline(),
	)
}

func TestRunProcessesAllIDsInChunks(t *testing.T) {
	rq := require.New(t)

	processor := &fakeProcessor{}
	jobs := &fakeJobStore{}
	registry := &fakeRegistry{}

	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	err := newOrchestrator(processor, jobs, registry).Run(context.Background(), "job1", ids)
	rq.NoError(err)

	rq.Equal(entity.JobCompleted, jobs.done)
	rq.Len(jobs.completed, len(ids))

	// Results keep the input order even though units finish out of order.
	for i, result := range jobs.completed {
		rq.Equal(ids[i], result.SupplierID)
		rq.Equal(entity.OutcomePublished, result.Outcome)
	}

	// Progress persisted after every chunk: 3, 6, then all 7 results.
	rq.Len(jobs.progress, 3)
	rq.Len(jobs.progress[0], 3)
	rq.Len(jobs.progress[1], 6)
	rq.Len(jobs.progress[2], 7)

	rq.Equal(1, registry.released)
}

func TestRunHandsPreloadedRecordsToUnits(t *testing.T) {
	rq := require.New(t)

	marketplaceID := "mp-1"
	preloaded := []entity.ReconciledRecord{
		{ID: 1, SupplierID: "a", MarketplaceID: &marketplaceID, Status: entity.RecordActive},
		{ID: 2, SupplierID: "a", Status: entity.RecordPaused},
	}

	processor := &fakeProcessor{}
	orchestrator := NewOrchestrator(
		processor, &fakeJobStore{}, fakePreloader{records: preloaded},
		&fakeSettings{settings: config.Settings{Concurrency: 2, BatchIntervalMs: 1}},
		&fakeRegistry{}, testPipeline(),
	)

	rq.NoError(orchestrator.Run(context.Background(), "job1", []string{"a", "b"}))

	rq.Len(processor.knownFor["a"], 2)
	rq.Equal(int64(1), processor.knownFor["a"][0].ID)

	// An id without live rows still gets a non-nil snapshot, so the unit
	// knows the preload ran.
	rq.NotNil(processor.knownFor["b"])
	rq.Empty(processor.knownFor["b"])
}

func TestRunPreloadFailureLeavesUnitsUnassisted(t *testing.T) {
	rq := require.New(t)

	processor := &fakeProcessor{}
	orchestrator := NewOrchestrator(
		processor, &fakeJobStore{}, fakePreloader{err: domain.NewError(errcodes.InternalServerError, "db down")},
		&fakeSettings{settings: config.Settings{Concurrency: 1}},
		&fakeRegistry{}, testPipeline(),
	)

	rq.NoError(orchestrator.Run(context.Background(), "job1", []string{"a"}))

	// A failed preload must not look like "nothing live"; units fall back
	// to their own records read.
	rq.Nil(processor.knownFor["a"])
}

func TestRunDeduplicatesIDs(t *testing.T) {
	rq := require.New(t)

	processor := &fakeProcessor{}
	jobs := &fakeJobStore{}

	err := newOrchestrator(processor, jobs, &fakeRegistry{}).
		Run(context.Background(), "job1", []string{"a", "b", "a", "c", "b"})
	rq.NoError(err)

	rq.Equal(3, processor.count())
	rq.Len(jobs.completed, 3)
}

func TestRunFatalAbortsPass(t *testing.T) {
	rq := require.New(t)

	fatal := domain.NewError(errcodes.SupplierAuthFailed, "bad api key")
	processor := &fakeProcessor{fatalFor: map[string]error{"b": fatal}}
	jobs := &fakeJobStore{}
	registry := &fakeRegistry{}

	err := newOrchestrator(processor, jobs, registry).
		Run(context.Background(), "job1", []string{"a", "b", "c", "d", "e", "f"})
	rq.Error(err)
	rq.Equal(errcodes.SupplierAuthFailed, domain.GetCode(err))

	rq.Equal(entity.JobFailed, jobs.done)
	// The first chunk's results are retained; the second chunk never ran.
	rq.Len(jobs.failed, 3)
	rq.LessOrEqual(processor.count(), 3)
	rq.Equal(1, registry.released)
}

func TestRunAbandonsTimedOutUnit(t *testing.T) {
	rq := require.New(t)

	processor := &fakeProcessor{delayFor: map[string]time.Duration{"slow": 300 * time.Millisecond}}
	jobs := &fakeJobStore{}

	pipeline := testPipeline()
	pipeline.UnitTimeout = 30 * time.Millisecond

	orchestrator := NewOrchestrator(
		processor, jobs, fakePreloader{},
		&fakeSettings{settings: config.Settings{Concurrency: 2}},
		&fakeRegistry{}, pipeline,
	)

	start := time.Now()
	err := orchestrator.Run(context.Background(), "job1", []string{"slow", "fast"})
	rq.NoError(err)
	rq.Less(time.Since(start), 250*time.Millisecond)

	rq.Equal(entity.JobCompleted, jobs.done)
	rq.Equal(entity.OutcomeError, jobs.completed[0].Outcome)
	rq.Equal(entity.ReasonTimeout, jobs.completed[0].Reason)
	rq.Equal(entity.OutcomePublished, jobs.completed[1].Outcome)
}

func TestRunRecoversUnitPanic(t *testing.T) {
	rq := require.New(t)

	processor := &fakeProcessor{panicFor: map[string]bool{"b": true}}
	jobs := &fakeJobStore{}

	err := newOrchestrator(processor, jobs, &fakeRegistry{}).
		Run(context.Background(), "job1", []string{"a", "b", "c"})
	rq.NoError(err)

	rq.Equal(entity.JobCompleted, jobs.done)
	rq.Equal(entity.OutcomeError, jobs.completed[1].Outcome)
	rq.Equal(entity.ReasonInternal, jobs.completed[1].Reason)
}

func TestRunTopLevelPanicFailsJob(t *testing.T) {
	rq := require.New(t)

	jobs := &fakeJobStore{}
	registry := &fakeRegistry{}

	orchestrator := NewOrchestrator(
		&fakeProcessor{}, jobs, fakePreloader{},
		&fakeSettings{settings: config.Settings{Concurrency: 1}, panicOn: true},
		registry, testPipeline(),
	)

	err := orchestrator.Run(context.Background(), "job1", []string{"a"})
	rq.Error(err)

	rq.Equal(entity.JobFailed, jobs.done)
	rq.Contains(jobs.failMsg, "panic")
	rq.Equal(1, registry.released)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.tasks = append(f.tasks, task)

	return &asynq.TaskInfo{}, nil
}

func TestLaunchEnqueuesTask(t *testing.T) {
	rq := require.New(t)

	registry := &fakeRegistry{}
	queue := &fakeEnqueuer{}

	jobID, err := NewLauncher(registry, &fakeJobStore{}, queue).
		Launch(context.Background(), []string{"a", "b", "a"})
	rq.NoError(err)
	rq.NotEmpty(jobID)

	rq.Len(queue.tasks, 1)
	rq.Equal(SyncJobType, queue.tasks[0].Type())

	var payload syncTaskPayload
	rq.NoError(json.Unmarshal(queue.tasks[0].Payload(), &payload))
	rq.Equal(jobID, payload.JobID)
	rq.Equal([]string{"a", "b"}, payload.IDs)
}

func TestLaunchRejectsConcurrentPass(t *testing.T) {
	rq := require.New(t)

	registry := &fakeRegistry{denied: true}

	_, err := NewLauncher(registry, &fakeJobStore{}, &fakeEnqueuer{}).
		Launch(context.Background(), []string{"a"})
	rq.Error(err)
	rq.Equal(errcodes.JobAlreadyRunning, domain.GetCode(err))
}

func TestLaunchReleasesOnEnqueueFailure(t *testing.T) {
	rq := require.New(t)

	registry := &fakeRegistry{}
	queue := &fakeEnqueuer{err: domain.NewError(errcodes.InternalServerError, "queue down")}

	_, err := NewLauncher(registry, &fakeJobStore{}, queue).
		Launch(context.Background(), []string{"a"})
	rq.Error(err)
	rq.Equal(1, registry.released)
}
