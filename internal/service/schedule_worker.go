package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/repository"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
	"github.com/noah-isme/jobshop-api/pkg/jobs"
)

type runSolver interface {
	SolveParams(ctx context.Context, params models.ScheduleRunParams) (*models.ScheduleResult, error)
}

// ScheduleWorker bridges queue jobs to the scheduling pipeline.
type ScheduleWorker struct {
	repo    scheduleRunStore
	solver  runSolver
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewScheduleWorker constructs a worker.
func NewScheduleWorker(repo scheduleRunStore, solver runSolver, metrics *MetricsService, logger *zap.Logger) *ScheduleWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleWorker{repo: repo, solver: solver, metrics: metrics, logger: logger, now: time.Now}
}

// Handle processes a queue job. Domain failures finish the run as FAILED and
// come back wrapped in jobs.Permanent; infrastructure failures put the run
// back to QUEUED and return the error so the queue retries. A solve cut short
// by ctx leaves the run QUEUED for the next start to recover.
func (w *ScheduleWorker) Handle(ctx context.Context, job jobs.Job) error {
	run, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			w.logger.Info("schedule run vanished before processing", zap.String("run_id", job.ID))
			return nil
		}
		return err
	}
	if run.Status.Finished() {
		return nil
	}

	running := models.ScheduleRunStatusRunning
	started := w.now().UTC()
	if err := w.repo.Update(ctx, run.ID, repository.UpdateScheduleRunParams{Status: &running, StartedAt: &started}); err != nil {
		return err
	}
	w.metrics.ObserveRunTransition(string(running))

	result, err := w.solver.SolveParams(ctx, run.Params)
	if ctxErr := ctx.Err(); ctxErr != nil {
		w.requeue(ctx, run.ID, "interrupted: "+ctxErr.Error())
		return ctxErr
	}
	if err != nil {
		if isDomainError(err) {
			w.fail(ctx, run.ID, err)
			return jobs.Permanent(err)
		}
		w.requeue(ctx, run.ID, err.Error())
		return err
	}

	succeeded := models.ScheduleRunStatusSucceeded
	finished := w.now().UTC()
	if err := w.repo.Update(context.WithoutCancel(ctx), run.ID, repository.UpdateScheduleRunParams{
		Status:     &succeeded,
		Result:     result,
		FinishedAt: &finished,
	}); err != nil {
		return err
	}
	w.metrics.ObserveRunTransition(string(succeeded))
	w.logger.Info("schedule run succeeded",
		zap.String("run_id", run.ID),
		zap.String("status", result.Status),
		zap.Int64("objective", result.Objective),
		zap.Bool("cached", result.Cached),
	)
	return nil
}

// Abandon marks a run FAILED once the queue stops retrying it. Runs that
// already finished are left alone.
func (w *ScheduleWorker) Abandon(ctx context.Context, job jobs.Job, err error) {
	ctx = context.WithoutCancel(ctx)
	if run, getErr := w.repo.GetByID(ctx, job.ID); getErr == nil && run.Status.Finished() {
		return
	}
	w.fail(ctx, job.ID, err)
}

func (w *ScheduleWorker) requeue(ctx context.Context, id, reason string) {
	queued := models.ScheduleRunStatusQueued
	if err := w.repo.Update(context.WithoutCancel(ctx), id, repository.UpdateScheduleRunParams{
		Status:       &queued,
		ErrorMessage: &reason,
	}); err != nil {
		w.logger.Warn("failed to requeue schedule run", zap.String("run_id", id), zap.Error(err))
		return
	}
	w.metrics.ObserveRunTransition(string(queued))
}

func (w *ScheduleWorker) fail(ctx context.Context, id string, cause error) {
	appErr := appErrors.FromError(cause)
	failed := models.ScheduleRunStatusFailed
	code := appErr.Code
	msg := cause.Error()
	finished := w.now().UTC()
	if err := w.repo.Update(context.WithoutCancel(ctx), id, repository.UpdateScheduleRunParams{
		Status:       &failed,
		ErrorCode:    &code,
		ErrorMessage: &msg,
		FinishedAt:   &finished,
	}); err != nil {
		w.logger.Warn("failed to mark schedule run failed", zap.String("run_id", id), zap.Error(err))
		return
	}
	w.metrics.ObserveRunTransition(string(failed))
	w.logger.Warn("schedule run failed", zap.String("run_id", id), zap.String("code", code), zap.Error(cause))
}

// isDomainError reports failures that retrying cannot fix.
func isDomainError(err error) bool {
	for _, target := range []error{
		appErrors.ErrSchema,
		appErrors.ErrEmptyInstance,
		appErrors.ErrEncoding,
		appErrors.ErrNoSolution,
		appErrors.ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
