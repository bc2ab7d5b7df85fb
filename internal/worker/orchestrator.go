// Package worker runs reconciliation passes: chunked, paced, guarded against
// re-entrant invocation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"catalog_sync/internal/config"
	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/internal/metrics"
	"catalog_sync/pkg/batch"
	"catalog_sync/pkg/contextx"
	"catalog_sync/pkg/errcodes"
	"catalog_sync/pkg/logx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// SyncJobType names the one batch this service runs. The job registry keys
// on it.
const SyncJobType = "catalog:sync"

type UnitProcessor interface {
	Process(ctx context.Context, jobID, supplierID string, known []entity.ReconciledRecord) (entity.UnitResult, error)
}

type JobStore interface {
	UpdateProgress(ctx context.Context, jobID string, results []entity.UnitResult) error
	Complete(ctx context.Context, jobID string, results []entity.UnitResult) error
	Fail(ctx context.Context, jobID string, results []entity.UnitResult, reason string) error
}

type RecordPreloader interface {
	ListLiveBySupplierIDs(ctx context.Context, supplierIDs []string) ([]entity.ReconciledRecord, error)
}

type SettingsSource interface {
	Current(ctx context.Context) config.Settings
}

type JobRegistry interface {
	Acquire(ctx context.Context, jobType, jobID string) (bool, error)
	Release(ctx context.Context, jobType string) error
}

type Orchestrator struct {
	units    UnitProcessor
	jobs     JobStore
	records  RecordPreloader
	settings SettingsSource
	registry JobRegistry
	pipeline config.Pipeline
}

func NewOrchestrator(
	units UnitProcessor,
	jobs JobStore,
	records RecordPreloader,
	settings SettingsSource,
	registry JobRegistry,
	pipeline config.Pipeline,
) *Orchestrator {
	return &Orchestrator{
		units:    units,
		jobs:     jobs,
		records:  records,
		settings: settings,
		registry: registry,
		pipeline: pipeline,
	}
}

// Run executes one pass over ids. The caller must have registered jobID in
// the registry; Run releases the registration when the pass ends, however it
// ends. Chunks run strictly one after another and progress is persisted
// after every chunk, so a crash loses at most one chunk of results.
func (o *Orchestrator) Run(ctx context.Context, jobID string, ids []string) (err error) {
	defer func() {
		detached := context.WithoutCancel(ctx)
		if releaseErr := o.registry.Release(detached, SyncJobType); releaseErr != nil {
			logger(detached).Warn("failed to release job registration",
				slog.String("job_id", jobID), logx.Error(releaseErr))
		}
	}()

	ids = lo.Uniq(ids)

	var results []entity.UnitResult

	defer func() {
		if recovered := recover(); recovered != nil {
			detached := context.WithoutCancel(ctx)
			logger(detached).Error("pass panicked",
				slog.String("job_id", jobID), slog.Any("panic", recovered))

			o.fail(detached, jobID, results, fmt.Sprintf("panic: %v", recovered))
			err = domain.NewError(errcodes.InternalServerError, "pass panicked")
		}
	}()

	chunkSize := o.pipeline.ChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}

	for chunkIndex, chunk := range lo.Chunk(ids, chunkSize) {
		if ctx.Err() != nil {
			o.fail(context.WithoutCancel(ctx), jobID, results, "pass cancelled")
			return ctx.Err()
		}

		settings := o.settings.Current(ctx)

		preloaded, preloadErr := o.records.ListLiveBySupplierIDs(ctx, chunk)
		if preloadErr != nil {
			logger(ctx).Warn("chunk preload failed",
				slog.String("job_id", jobID), slog.Int("chunk", chunkIndex), logx.Error(preloadErr))
		}

		// Every id in the chunk gets a slot, so a unit can tell a clean
		// preload with no live rows (empty) from a failed one (nil).
		var knownByID map[string][]entity.ReconciledRecord
		if preloadErr == nil {
			knownByID = make(map[string][]entity.ReconciledRecord, len(chunk))
			for _, supplierID := range chunk {
				knownByID[supplierID] = []entity.ReconciledRecord{}
			}
			for _, rec := range preloaded {
				knownByID[rec.SupplierID] = append(knownByID[rec.SupplierID], rec)
			}
		}

		logger(ctx).Info("chunk started",
			slog.String("job_id", jobID),
			slog.Int("chunk", chunkIndex),
			slog.Int("size", len(chunk)),
			slog.Int("known_records", len(preloaded)),
			slog.Int("concurrency", settings.Concurrency),
		)

		units := make([]batch.Unit[entity.UnitResult], len(chunk))
		for i, supplierID := range chunk {
			units[i] = func(ctx context.Context) (entity.UnitResult, error) {
				return o.runUnit(ctx, jobID, supplierID, knownByID[supplierID])
			}
		}

		chunkCtx, cancel := context.WithTimeout(ctx, o.pipeline.ChunkTimeout)
		chunkResults := batch.Run(chunkCtx, units, batch.Options{
			Concurrency: settings.Concurrency,
			Interval:    time.Duration(settings.BatchIntervalMs) * time.Millisecond,
		})
		cancel()

		var fatal error
		for i, res := range chunkResults {
			result := res.Value

			switch {
			case res.Err == nil:
			case errors.Is(res.Err, context.DeadlineExceeded) || errors.Is(res.Err, context.Canceled):
				result = entity.UnitResult{
					SupplierID: chunk[i],
					Outcome:    entity.OutcomeError,
					Reason:     entity.ReasonTimeout,
				}
			default:
				// Fatal unit errors still leave a result slot so the job
				// record accounts for every input id.
				result = entity.UnitResult{
					SupplierID: chunk[i],
					Outcome:    entity.OutcomeError,
					Reason:     entity.ReasonInternal,
				}
				if fatal == nil {
					fatal = res.Err
				}
			}

			metrics.ObserveOutcome(string(result.Outcome), result.Reason)
			results = append(results, result)
		}

		if err := o.jobs.UpdateProgress(ctx, jobID, results); err != nil {
			logger(ctx).Warn("failed to persist job progress",
				slog.String("job_id", jobID), logx.Error(err))
		}

		if fatal != nil {
			logger(ctx).Error("pass aborted",
				slog.String("job_id", jobID), logx.Error(fatal))
			o.fail(context.WithoutCancel(ctx), jobID, results, fatal.Error())

			return fatal
		}
	}

	if err := o.jobs.Complete(ctx, jobID, results); err != nil {
		return fmt.Errorf("jobs.Complete: %w", err)
	}

	metrics.JobsFinished.WithLabelValues(string(entity.JobCompleted)).Inc()

	logger(ctx).Info("pass finished",
		slog.String("job_id", jobID),
		slog.Int("processed", len(results)),
		slog.Any("summary", entity.Summarize(results)),
	)

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, results []entity.UnitResult, reason string) {
	if err := o.jobs.Fail(ctx, jobID, results, reason); err != nil {
		logger(ctx).Error("failed to mark job failed",
			slog.String("job_id", jobID), logx.Error(err))
	}

	metrics.JobsFinished.WithLabelValues(string(entity.JobFailed)).Inc()
}

type unitOutcome struct {
	result entity.UnitResult
	err    error
}

// runUnit runs one supplier id with its own deadline. A unit that overruns
// is abandoned, not cancelled: the atomic reservation makes a late
// completion harmless, and cleanup inside the unit runs on detached
// contexts.
func (o *Orchestrator) runUnit(ctx context.Context, jobID, supplierID string, known []entity.ReconciledRecord) (entity.UnitResult, error) {
	outcomes := make(chan unitOutcome, 1)

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger(ctx).Error("unit panicked",
					slog.String("supplier_id", supplierID), slog.Any("panic", recovered))

				outcomes <- unitOutcome{result: entity.UnitResult{
					SupplierID: supplierID,
					Outcome:    entity.OutcomeError,
					Reason:     entity.ReasonInternal,
				}}
			}
		}()

		result, err := o.units.Process(ctx, jobID, supplierID, known)
		outcomes <- unitOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(o.pipeline.UnitTimeout)
	defer timer.Stop()

	select {
	case out := <-outcomes:
		return out.result, out.err
	case <-timer.C:
		logger(ctx).Warn("unit timed out, abandoning",
			slog.String("job_id", jobID), slog.String("supplier_id", supplierID))

		return entity.UnitResult{
			SupplierID: supplierID,
			Outcome:    entity.OutcomeError,
			Reason:     entity.ReasonTimeout,
		}, nil
	case <-ctx.Done():
		return entity.UnitResult{
			SupplierID: supplierID,
			Outcome:    entity.OutcomeError,
			Reason:     entity.ReasonTimeout,
		}, nil
	}
}
