package jobshop

import (
	"errors"
	"fmt"
	"math"

	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
)

// DefaultTardinessWeight penalises one unit of lateness like one unit of makespan.
const DefaultTardinessWeight int64 = 1

// FieldTardinessWeight names the weight option in error messages.
const FieldTardinessWeight = "TardinessWeight"

// EncodeOptions tunes the objective.
type EncodeOptions struct {
	TardinessWeight int64
}

// TaskVars links a task to its interval and time variables.
type TaskVars struct {
	Task     models.Task
	Interval cpmodel.IntervalID
	Start    cpmodel.VarID
	End      cpmodel.VarID
}

// JobVars links a job to its completion and tardiness variables.
type JobVars struct {
	JobID             models.ID
	Deadline          int64
	DeadlineDefaulted bool
	End               cpmodel.VarID
	Tardiness         cpmodel.VarID
}

// Formulation is the encoded model plus the mapping needed to read a
// solution back without consulting the solver again.
type Formulation struct {
	Instance        *models.Instance
	Model           *cpmodel.Model
	Tasks           []TaskVars
	Jobs            []JobVars
	Makespan        cpmodel.VarID
	TardinessWeight int64
}

// Encode compiles inst into a cpmodel formulation:
//
//	start, end in [0, horizon] with end = start + duration per task
//	no-overlap per machine
//	end(t_i) <= start(t_i+1) within each job
//	makespan = max(end), jobEnd = max(end of job), tardiness = max(0, jobEnd - deadline)
//	minimize makespan + weight * sum(tardiness)
func Encode(inst *models.Instance, opts EncodeOptions) (*Formulation, error) {
	if inst == nil {
		return nil, encodingError(errors.New("instance is nil"))
	}
	if len(inst.Tasks) == 0 {
		return nil, emptyInstanceError()
	}
	if opts.TardinessWeight < 0 {
		return nil, encodingError(fmt.Errorf("tardiness weight %d is negative", opts.TardinessWeight))
	}

	horizon := inst.Horizon
	if horizon < 0 || horizon > MaxHorizon {
		return nil, encodingError(fmt.Errorf("horizon %d outside [0, %d]", horizon, MaxHorizon))
	}
	if objectiveOverflows(horizon, int64(len(inst.Jobs)), opts.TardinessWeight) {
		return nil, schemaError(0, FieldTardinessWeight,
			fmt.Sprintf("%d is too large for %d jobs over horizon %d", opts.TardinessWeight, len(inst.Jobs), horizon))
	}

	m := cpmodel.NewModel()
	f := &Formulation{
		Instance:        inst,
		Model:           m,
		Tasks:           make([]TaskVars, len(inst.Tasks)),
		Jobs:            make([]JobVars, len(inst.Jobs)),
		TardinessWeight: opts.TardinessWeight,
	}

	index := make(map[taskKey]int, len(inst.Tasks))
	allEnds := make([]cpmodel.LinearExpr, 0, len(inst.Tasks))
	for i, task := range inst.Tasks {
		suffix := fmt.Sprintf("%s_%s", task.JobID, task.TaskID)
		start := m.NewIntVar(0, horizon, "start_"+suffix)
		end := m.NewIntVar(0, horizon, "end_"+suffix)
		interval := m.NewIntervalVar(start, end, task.Duration, "interval_"+suffix)
		f.Tasks[i] = TaskVars{Task: task, Interval: interval, Start: start, End: end}
		index[taskKey{job: task.JobID, task: task.TaskID}] = i
		allEnds = append(allEnds, cpmodel.VarExpr(end, 0))
	}

	byMachine := make(map[models.ID][]cpmodel.IntervalID, len(inst.Machines))
	for _, machine := range inst.Machines {
		byMachine[machine] = nil
	}
	for _, tv := range f.Tasks {
		intervals, ok := byMachine[tv.Task.MachineID]
		if !ok {
			return nil, encodingError(fmt.Errorf("machine %s is not declared on the instance", tv.Task.MachineID))
		}
		byMachine[tv.Task.MachineID] = append(intervals, tv.Interval)
	}
	for _, machine := range inst.Machines {
		m.AddNoOverlap("machine_"+string(machine), byMachine[machine]...)
	}

	for j, job := range inst.Jobs {
		if len(job.Tasks) == 0 {
			return nil, encodingError(fmt.Errorf("job %s has no tasks", job.ID))
		}
		ends := make([]cpmodel.LinearExpr, 0, len(job.Tasks))
		var prev *TaskVars
		for _, task := range job.Tasks {
			idx, ok := index[taskKey{job: job.ID, task: task.TaskID}]
			if !ok {
				return nil, encodingError(fmt.Errorf("task %s of job %s is not declared on the instance", task.TaskID, job.ID))
			}
			current := &f.Tasks[idx]
			if prev != nil {
				m.AddPrecedence(prev.Interval, current.Interval)
			}
			prev = current
			ends = append(ends, cpmodel.VarExpr(current.End, 0))
		}

		jobEnd := m.NewIntVar(0, horizon, "job_end_"+string(job.ID))
		m.AddMaxEquality(jobEnd, ends...)
		tardiness := m.NewIntVar(0, horizon, "tardiness_"+string(job.ID))
		m.AddMaxEquality(tardiness, cpmodel.Constant(0), cpmodel.VarExpr(jobEnd, -job.Deadline))
		f.Jobs[j] = JobVars{
			JobID:             job.ID,
			Deadline:          job.Deadline,
			DeadlineDefaulted: job.DeadlineDefaulted,
			End:               jobEnd,
			Tardiness:         tardiness,
		}
	}

	f.Makespan = m.NewIntVar(0, horizon, "makespan")
	m.AddMaxEquality(f.Makespan, allEnds...)

	objective := cpmodel.LinearExpr{Terms: []cpmodel.Term{{Var: f.Makespan, Coeff: 1}}}
	if opts.TardinessWeight > 0 {
		for _, jv := range f.Jobs {
			objective.Terms = append(objective.Terms, cpmodel.Term{Var: jv.Tardiness, Coeff: opts.TardinessWeight})
		}
	}
	m.Minimize(objective)

	if err := m.Validate(); err != nil {
		return nil, encodingError(err)
	}
	return f, nil
}

// objectiveOverflows reports whether makespan + weight * jobs * horizon, the
// largest objective value the model admits, would not fit in an int64.
func objectiveOverflows(horizon, jobs, weight int64) bool {
	if weight == 0 || horizon == 0 || jobs == 0 {
		return false
	}
	limit := (math.MaxInt64 - horizon) / horizon / jobs
	return weight > limit
}
