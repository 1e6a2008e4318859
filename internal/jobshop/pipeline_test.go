package jobshop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
	"github.com/noah-isme/jobshop-api/pkg/solver/disjunctive"
)

func newTestPipeline() *Pipeline {
	return NewPipeline(disjunctive.New(disjunctive.Config{MaxDuration: 10 * time.Second}), nil)
}

func TestPipelineTwoJobsTwoMachines(t *testing.T) {
	result, err := newTestPipeline().Run(context.Background(), twoByTwo(), Options{TardinessWeight: 1})
	require.NoError(t, err)

	schedule := result.Schedule
	assert.Equal(t, cpmodel.StatusOptimal, schedule.Status)
	assert.Equal(t, int64(11), schedule.Horizon)
	assert.Equal(t, int64(7), schedule.Makespan)
	assert.Equal(t, int64(7), schedule.Objective)
	require.NoError(t, verifyTasks(schedule.Horizon, schedule.Tasks))
	for _, job := range schedule.Jobs {
		assert.True(t, job.DeadlineDefaulted)
		assert.Equal(t, schedule.Horizon, job.Deadline)
		assert.Equal(t, int64(0), job.Tardiness)
	}
}

func TestPipelineSingleTask(t *testing.T) {
	result, err := newTestPipeline().Run(context.Background(), []models.TaskRecord{rec("1", "1", "M1", "5", "")}, Options{TardinessWeight: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.Schedule.Makespan)
	assert.Equal(t, int64(5), result.Schedule.Objective)
	assert.Equal(t, 1.0, result.Utilization.Before["M1"])
	assert.Equal(t, 1.0, result.Utilization.After["M1"])
}

func TestPipelineEmptyInput(t *testing.T) {
	called := false
	solver := cpmodel.SolverFunc(func(ctx context.Context, m *cpmodel.Model, p cpmodel.Params) (*cpmodel.Solution, error) {
		called = true
		return nil, nil
	})

	_, err := NewPipeline(solver, nil).Run(context.Background(), nil, Options{TardinessWeight: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrEmptyInstance))
	assert.False(t, called)
}

func TestPipelineDeadlineBelowReachableCompletion(t *testing.T) {
	records := twoByTwo()
	records[0].Deadline = "2"

	result, err := newTestPipeline().Run(context.Background(), records, Options{TardinessWeight: 1})
	require.NoError(t, err)

	schedule := result.Schedule
	assert.Greater(t, schedule.TotalTardiness, int64(0))
	assert.Equal(t, schedule.Makespan+schedule.TotalTardiness, schedule.Objective)
	assert.Greater(t, schedule.Objective, int64(7))
	assert.Equal(t, int64(10), schedule.Objective)
	assert.False(t, schedule.Jobs[0].DeadlineDefaulted)
	assert.Equal(t, int64(3), schedule.Jobs[0].Tardiness)

	weighted, err := newTestPipeline().Run(context.Background(), records, Options{TardinessWeight: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(13), weighted.Schedule.Objective)
}

func TestPipelineInfeasibleSolver(t *testing.T) {
	solver := cpmodel.SolverFunc(func(ctx context.Context, m *cpmodel.Model, p cpmodel.Params) (*cpmodel.Solution, error) {
		return &cpmodel.Solution{Status: cpmodel.StatusInfeasible}, nil
	})

	result, err := NewPipeline(solver, nil).Run(context.Background(), twoByTwo(), Options{TardinessWeight: 1})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, appErrors.ErrNoSolution))

	var noSolution *NoSolutionError
	require.True(t, errors.As(err, &noSolution))
	assert.Equal(t, cpmodel.StatusInfeasible, noSolution.Status)
}

func TestPipelineTimeoutWithoutIncumbent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline().Run(ctx, twoByTwo(), Options{TardinessWeight: 1})
	var noSolution *NoSolutionError
	require.True(t, errors.As(err, &noSolution))
	assert.Equal(t, cpmodel.StatusUnknown, noSolution.Status)
}

func TestPipelinePassesSolveTimeAndRejectsBadValuations(t *testing.T) {
	var seen time.Duration
	solver := cpmodel.SolverFunc(func(ctx context.Context, m *cpmodel.Model, p cpmodel.Params) (*cpmodel.Solution, error) {
		seen = p.MaxDuration
		return &cpmodel.Solution{Status: cpmodel.StatusOptimal, Values: make([]int64, len(m.Vars()))}, nil
	})

	_, err := NewPipeline(solver, nil).Run(context.Background(), twoByTwo(), Options{TardinessWeight: 1, MaxSolveTime: 3 * time.Second})
	require.Error(t, err)
	assert.Equal(t, 3*time.Second, seen)
	assert.True(t, errors.Is(err, appErrors.ErrEncoding))
}

func TestPipelineSolverErrorIsEncodingError(t *testing.T) {
	solver := cpmodel.SolverFunc(func(ctx context.Context, m *cpmodel.Model, p cpmodel.Params) (*cpmodel.Solution, error) {
		return nil, disjunctive.ErrUnsupported
	})
	_, err := NewPipeline(solver, nil).Run(context.Background(), twoByTwo(), Options{TardinessWeight: 1})
	assert.True(t, errors.Is(err, appErrors.ErrEncoding))
	assert.True(t, errors.Is(err, disjunctive.ErrUnsupported))
}

func TestResultReport(t *testing.T) {
	result, err := newTestPipeline().Run(context.Background(), twoByTwo(), Options{TardinessWeight: 1})
	require.NoError(t, err)

	report := result.Report()
	assert.Equal(t, "OPTIMAL", report.Status)
	assert.Equal(t, int64(7), report.Objective)
	assert.Len(t, report.Schedule, 4)
	assert.Len(t, report.ByMachine, 4)
	require.Len(t, report.Gantt, 2)
	assert.Equal(t, models.ID("M1"), report.Gantt[0].MachineID)
	assert.Len(t, report.Gantt[0].Bars, 2)
	assert.LessOrEqual(t, report.Gantt[0].Bars[0].End, report.Gantt[0].Bars[1].Start)
	assert.Equal(t, int64(1), report.TardinessWeight)
}

func TestPipelineNilSolutionIsNoSolution(t *testing.T) {
	solver := cpmodel.SolverFunc(func(ctx context.Context, m *cpmodel.Model, p cpmodel.Params) (*cpmodel.Solution, error) {
		return nil, nil
	})

	var err error
	require.NotPanics(t, func() {
		_, err = NewPipeline(solver, nil).Run(context.Background(), twoByTwo(), Options{TardinessWeight: 1})
	})
	var noSolution *NoSolutionError
	require.True(t, errors.As(err, &noSolution))
	assert.Equal(t, cpmodel.StatusUnknown, noSolution.Status)
}

func TestPipelineZeroDurationTaskFitsInsideBusyMachine(t *testing.T) {
	records := []models.TaskRecord{
		rec("A", "1", "M1", "10", ""),
		rec("B", "1", "M2", "5", ""),
		rec("B", "2", "M1", "0", ""),
		rec("B", "3", "M3", "1", ""),
	}

	result, err := newTestPipeline().Run(context.Background(), records, Options{TardinessWeight: 1})
	require.NoError(t, err)

	schedule := result.Schedule
	assert.Equal(t, cpmodel.StatusOptimal, schedule.Status)
	assert.Equal(t, int64(10), schedule.Makespan)
	assert.Equal(t, int64(10), schedule.Objective)
	require.NoError(t, verifyTasks(schedule.Horizon, schedule.Tasks))
	for _, task := range schedule.Tasks {
		if task.JobID == "B" && task.TaskID == "2" {
			assert.Equal(t, int64(5), task.Start)
			assert.Equal(t, int64(5), task.End)
		}
	}
}
