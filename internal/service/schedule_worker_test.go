package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobshop-api/internal/jobshop"
	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/repository"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
	"github.com/noah-isme/jobshop-api/pkg/jobs"
)

type stubRunSolver struct {
	result  *models.ScheduleResult
	err     error
	calls   int
	onSolve func()
}

func (s *stubRunSolver) SolveParams(ctx context.Context, params models.ScheduleRunParams) (*models.ScheduleResult, error) {
	s.calls++
	if s.onSolve != nil {
		s.onSolve()
	}
	return s.result, s.err
}

// ctxStore rejects writes on a cancelled context like a database driver does.
type ctxStore struct {
	*repository.MemoryScheduleRunRepository
}

func (s ctxStore) Update(ctx context.Context, id string, params repository.UpdateScheduleRunParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryScheduleRunRepository.Update(ctx, id, params)
}

func queuedRun(t *testing.T, repo *repository.MemoryScheduleRunRepository) *models.ScheduleRun {
	t.Helper()
	run := &models.ScheduleRun{Params: models.ScheduleRunParams{Records: []models.TaskRecord{{JobID: "1", TaskID: "1", MachineID: "M1", Duration: "2"}}}}
	require.NoError(t, repo.Create(context.Background(), run))
	return run
}

func TestScheduleWorkerSuccess(t *testing.T) {
	repo := repository.NewMemoryScheduleRunRepository()
	run := queuedRun(t, repo)
	solver := &stubRunSolver{result: &models.ScheduleResult{Status: "OPTIMAL", Objective: 2, Makespan: 2}}

	worker := NewScheduleWorker(repo, solver, NewMetricsService(), nil)
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: run.ID}))

	stored, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleRunStatusSucceeded, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, int64(2), stored.Result.Objective)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.FinishedAt)
}

func TestScheduleWorkerDomainErrorFailsWithoutRetry(t *testing.T) {
	repo := repository.NewMemoryScheduleRunRepository()
	run := queuedRun(t, repo)
	noSolution := appErrors.Wrap(&jobshop.NoSolutionError{}, appErrors.ErrNoSolution.Code, appErrors.ErrNoSolution.Status, appErrors.ErrNoSolution.Message)
	solver := &stubRunSolver{err: noSolution}

	worker := NewScheduleWorker(repo, solver, nil, nil)
	err := worker.Handle(context.Background(), jobs.Job{ID: run.ID})
	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))
	assert.True(t, errors.Is(err, appErrors.ErrNoSolution))

	stored, getErr := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ScheduleRunStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorCode)
	assert.Equal(t, "NO_SOLUTION", *stored.ErrorCode)
	assert.NotNil(t, stored.FinishedAt)

	// The queue reports the permanent failure; the stored outcome stays as is.
	worker.Abandon(context.Background(), jobs.Job{ID: run.ID}, err)
	stored, getErr = repo.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, "NO_SOLUTION", *stored.ErrorCode)
}

func TestScheduleWorkerInterruptedSolveStaysQueued(t *testing.T) {
	repo := repository.NewMemoryScheduleRunRepository()
	run := queuedRun(t, repo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	noSolution := appErrors.Wrap(&jobshop.NoSolutionError{}, appErrors.ErrNoSolution.Code, appErrors.ErrNoSolution.Status, appErrors.ErrNoSolution.Message)
	solver := &stubRunSolver{err: noSolution, onSolve: cancel}

	worker := NewScheduleWorker(ctxStore{repo}, solver, nil, nil)
	err := worker.Handle(ctx, jobs.Job{ID: run.ID})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, jobs.IsPermanent(err))

	stored, getErr := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ScheduleRunStatusQueued, stored.Status)
	assert.Nil(t, stored.ErrorCode)
	assert.Nil(t, stored.FinishedAt)
}

func TestScheduleWorkerFailWritesAfterCancel(t *testing.T) {
	repo := repository.NewMemoryScheduleRunRepository()
	run := queuedRun(t, repo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := NewScheduleWorker(ctxStore{repo}, &stubRunSolver{}, nil, nil)
	worker.Abandon(ctx, jobs.Job{ID: run.ID}, errors.New("gave up"))

	stored, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleRunStatusFailed, stored.Status)
	assert.Equal(t, appErrors.ErrInternal.Code, *stored.ErrorCode)
}

func TestScheduleWorkerInfrastructureErrorRequeues(t *testing.T) {
	repo := repository.NewMemoryScheduleRunRepository()
	run := queuedRun(t, repo)
	solver := &stubRunSolver{err: errors.New("redis timeout")}

	worker := NewScheduleWorker(repo, solver, nil, nil)
	err := worker.Handle(context.Background(), jobs.Job{ID: run.ID})
	require.Error(t, err)

	stored, getErr := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ScheduleRunStatusQueued, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "redis timeout", *stored.ErrorMessage)

	worker.Abandon(context.Background(), jobs.Job{ID: run.ID}, err)
	stored, getErr = repo.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ScheduleRunStatusFailed, stored.Status)
	assert.Equal(t, appErrors.ErrInternal.Code, *stored.ErrorCode)
}

func TestScheduleWorkerSkipsFinishedAndMissingRuns(t *testing.T) {
	repo := repository.NewMemoryScheduleRunRepository()
	done := &models.ScheduleRun{Status: models.ScheduleRunStatusSucceeded}
	require.NoError(t, repo.Create(context.Background(), done))
	solver := &stubRunSolver{}

	worker := NewScheduleWorker(repo, solver, nil, nil)
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: done.ID}))
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "deleted"}))
	assert.Equal(t, 0, solver.calls)
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, isDomainError(appErrors.Clone(appErrors.ErrSchema, "bad row")))
	assert.True(t, isDomainError(appErrors.Clone(appErrors.ErrEmptyInstance, "")))
	assert.True(t, isDomainError(appErrors.Clone(appErrors.ErrEncoding, "")))
	assert.False(t, isDomainError(errors.New("boom")))
	assert.False(t, isDomainError(appErrors.ErrInternal))
}
