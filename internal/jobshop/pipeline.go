package jobshop

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
)

// Options configures one pipeline run.
type Options struct {
	TardinessWeight int64
	// MaxSolveTime bounds the solver call. Zero defers to the solver default.
	MaxSolveTime time.Duration
}

// Result bundles everything a caller can observe from one solve.
type Result struct {
	Instance        *models.Instance
	Schedule        *Schedule
	Utilization     models.UtilizationSummary
	TardinessWeight int64
}

// Pipeline runs Load, Encode, Solve, Interpret and utilization analysis in
// sequence. It holds no per-instance state and is safe for concurrent use
// when the solver is.
type Pipeline struct {
	solver cpmodel.Solver
	logger *zap.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(solver cpmodel.Solver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{solver: solver, logger: logger}
}

// Run loads records and solves the resulting instance.
func (p *Pipeline) Run(ctx context.Context, records []models.TaskRecord, opts Options) (*Result, error) {
	inst, err := Load(records)
	if err != nil {
		return nil, err
	}
	return p.Solve(ctx, inst, opts)
}

// Solve encodes and solves an already loaded instance.
func (p *Pipeline) Solve(ctx context.Context, inst *models.Instance, opts Options) (*Result, error) {
	formulation, err := Encode(inst, EncodeOptions{TardinessWeight: opts.TardinessWeight})
	if err != nil {
		return nil, err
	}

	solution, err := p.solver.Solve(ctx, formulation.Model, cpmodel.Params{MaxDuration: opts.MaxSolveTime})
	if err != nil {
		return nil, encodingError(fmt.Errorf("solver rejected model: %w", err))
	}

	schedule, err := Interpret(formulation, solution)
	if err != nil {
		status := cpmodel.StatusUnknown
		if solution != nil {
			status = solution.Status
		}
		p.logger.Warn("schedule not produced",
			zap.String("status", status.String()),
			zap.Int("tasks", len(inst.Tasks)),
			zap.Error(err),
		)
		return nil, err
	}

	before := RawUtilization(inst)
	after := ScheduledUtilization(inst.Machines, schedule.Tasks, inst.Horizon)

	p.logger.Info("schedule solved",
		zap.String("status", schedule.Status.String()),
		zap.Int("tasks", len(inst.Tasks)),
		zap.Int("machines", len(inst.Machines)),
		zap.Int64("objective", schedule.Objective),
		zap.Int64("makespan", schedule.Makespan),
		zap.Int64("nodes", schedule.Stats.Nodes),
		zap.Duration("elapsed", schedule.Stats.Elapsed),
	)

	return &Result{
		Instance:        inst,
		Schedule:        schedule,
		Utilization:     Summarize(before, after),
		TardinessWeight: opts.TardinessWeight,
	}, nil
}

// Report flattens the result into its persisted and serialised form.
func (r *Result) Report() models.ScheduleResult {
	byMachine := r.Schedule.ByMachine()
	schedule := make([]models.ScheduledTask, len(r.Schedule.Tasks))
	copy(schedule, r.Schedule.Tasks)
	jobs := make([]models.JobOutcome, len(r.Schedule.Jobs))
	copy(jobs, r.Schedule.Jobs)

	return models.ScheduleResult{
		Status:          r.Schedule.Status.String(),
		Objective:       r.Schedule.Objective,
		Makespan:        r.Schedule.Makespan,
		TotalTardiness:  r.Schedule.TotalTardiness,
		TardinessWeight: r.TardinessWeight,
		Horizon:         r.Schedule.Horizon,
		Schedule:        schedule,
		ByMachine:       byMachine,
		Gantt:           ganttLanes(r.Instance.Machines, byMachine),
		Jobs:            jobs,
		Utilization:     r.Utilization,
		Stats: models.SolveStats{
			Nodes:     r.Schedule.Stats.Nodes,
			ElapsedMs: r.Schedule.Stats.Elapsed.Milliseconds(),
			TimedOut:  r.Schedule.Stats.TimedOut,
		},
	}
}

// ganttLanes groups machine-ordered tasks into one lane per known machine.
func ganttLanes(machines []models.ID, byMachine []models.ScheduledTask) []models.GanttLane {
	lanes := make([]models.GanttLane, len(machines))
	index := make(map[models.ID]int, len(machines))
	for i, machine := range machines {
		lanes[i] = models.GanttLane{MachineID: machine, Bars: []models.GanttBar{}}
		index[machine] = i
	}
	for _, task := range byMachine {
		i, ok := index[task.MachineID]
		if !ok {
			continue
		}
		lanes[i].Bars = append(lanes[i].Bars, models.GanttBar{
			JobID:  task.JobID,
			TaskID: task.TaskID,
			Start:  task.Start,
			End:    task.End,
		})
	}
	return lanes
}
