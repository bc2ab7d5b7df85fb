package worker

import (
	"context"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/xid"
	"github.com/samber/lo"

	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/errcodes"
	"catalog_sync/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

type syncTaskPayload struct {
	JobID string   `json:"job_id"`
	IDs   []string `json:"ids"`
}

type LaunchStore interface {
	Create(ctx context.Context, job entity.SyncJob) error
	Fail(ctx context.Context, jobID string, results []entity.UnitResult, reason string) error
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type launchRegistry interface {
	JobRegistry
	Running(ctx context.Context, jobType string) (string, bool, error)
}

// Launcher starts a pass: registers it, persists the job record and hands
// the work to the task queue. The HTTP trigger returns as soon as Launch
// does; the pass itself runs detached.
type Launcher struct {
	registry launchRegistry
	jobs     LaunchStore
	queue    taskEnqueuer
}

func NewLauncher(registry launchRegistry, jobs LaunchStore, queue taskEnqueuer) *Launcher {
	return &Launcher{
		registry: registry,
		jobs:     jobs,
		queue:    queue,
	}
}

func (l *Launcher) Launch(ctx context.Context, ids []string) (string, error) {
	jobID := xid.New().String()

	acquired, err := l.registry.Acquire(ctx, SyncJobType, jobID)
	if err != nil {
		return "", err
	}

	if !acquired {
		message := "a pass of this type is already running"
		if runningID, ok, err := l.registry.Running(ctx, SyncJobType); err == nil && ok {
			message += ": " + runningID
		}

		return "", domain.NewError(errcodes.JobAlreadyRunning, message)
	}

	job := entity.SyncJob{
		ID:       jobID,
		Type:     SyncJobType,
		Status:   entity.JobRunning,
		InputIDs: lo.Uniq(ids),
	}

	if err := l.jobs.Create(ctx, job); err != nil {
		l.rollback(ctx, jobID, "")

		return "", err
	}

	payload, err := json.Marshal(syncTaskPayload{JobID: jobID, IDs: job.InputIDs})
	if err != nil {
		l.rollback(ctx, jobID, "failed to encode task payload")

		return "", domain.WrapError(err, errcodes.InternalServerError, "failed to encode task payload")
	}

	if _, err := l.queue.EnqueueContext(ctx, asynq.NewTask(SyncJobType, payload)); err != nil {
		l.rollback(ctx, jobID, "failed to enqueue task")

		return "", domain.WrapError(err, errcodes.InternalServerError, "failed to enqueue task")
	}

	return jobID, nil
}

func (l *Launcher) rollback(ctx context.Context, jobID, failReason string) {
	if err := l.registry.Release(ctx, SyncJobType); err != nil {
		logger(ctx).Warn("failed to release job registration", logx.Error(err))
	}

	if failReason == "" {
		return
	}

	if err := l.jobs.Fail(ctx, jobID, nil, failReason); err != nil {
		logger(ctx).Warn("failed to mark job failed", logx.Error(err))
	}
}

// HandleSyncTask is the asynq entry point of a pass.
func (o *Orchestrator) HandleSyncTask(ctx context.Context, task *asynq.Task) error {
	var payload syncTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to decode task payload")
	}

	return o.Run(ctx, payload.JobID, payload.IDs)
}
