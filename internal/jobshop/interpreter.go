package jobshop

import (
	"errors"
	"fmt"

	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
)

// Schedule is a validated solver outcome.
type Schedule struct {
	Status cpmodel.Status
	// Objective is the value the solver reports it minimised.
	Objective      int64
	Makespan       int64
	TotalTardiness int64
	Horizon        int64
	// Tasks are ordered by (jobId, taskId).
	Tasks []models.ScheduledTask
	Jobs  []models.JobOutcome
	Stats cpmodel.Stats
}

// ByMachine returns a copy of the tasks ordered by (machineId, start).
func (s *Schedule) ByMachine() []models.ScheduledTask {
	out := make([]models.ScheduledTask, len(s.Tasks))
	copy(out, s.Tasks)
	models.SortByMachineStart(out)
	return out
}

// Interpret reads sol back onto the tasks and jobs of f. A status other than
// OPTIMAL or FEASIBLE yields a NoSolutionError; a valuation that breaks a
// scheduling invariant yields an encoding error instead of a schedule.
func Interpret(f *Formulation, sol *cpmodel.Solution) (*Schedule, error) {
	if f == nil || f.Instance == nil || f.Model == nil {
		return nil, encodingError(errors.New("formulation is incomplete"))
	}
	if sol == nil {
		return nil, noSolutionError(cpmodel.StatusUnknown)
	}
	if !sol.Status.HasSolution() {
		return nil, noSolutionError(sol.Status)
	}

	value := func(v cpmodel.VarID) (int64, error) {
		val, ok := sol.Value(v)
		if !ok {
			return 0, encodingError(fmt.Errorf("solution has no value for %s", f.Model.Var(v).Name))
		}
		return val, nil
	}

	tasks := make([]models.ScheduledTask, 0, len(f.Tasks))
	for _, tv := range f.Tasks {
		start, err := value(tv.Start)
		if err != nil {
			return nil, err
		}
		end, err := value(tv.End)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, models.ScheduledTask{Task: tv.Task, Start: start, End: end})
	}
	models.SortByJobTask(tasks)

	if err := verifyTasks(f.Instance.Horizon, tasks); err != nil {
		return nil, encodingError(err)
	}

	lastEnd := make(map[models.ID]int64, len(f.Jobs))
	var maxEnd int64
	for _, task := range tasks {
		if task.End > lastEnd[task.JobID] {
			lastEnd[task.JobID] = task.End
		}
		if task.End > maxEnd {
			maxEnd = task.End
		}
	}

	schedule := &Schedule{
		Status:    sol.Status,
		Objective: sol.ObjectiveValue,
		Horizon:   f.Instance.Horizon,
		Tasks:     tasks,
		Jobs:      make([]models.JobOutcome, 0, len(f.Jobs)),
		Stats:     sol.Stats,
	}
	for _, jv := range f.Jobs {
		completion, err := value(jv.End)
		if err != nil {
			return nil, err
		}
		tardiness, err := value(jv.Tardiness)
		if err != nil {
			return nil, err
		}
		if completion != lastEnd[jv.JobID] {
			return nil, encodingError(fmt.Errorf("job %s completion %d differs from last task end %d", jv.JobID, completion, lastEnd[jv.JobID]))
		}
		if want := maxInt64(0, completion-jv.Deadline); tardiness != want {
			return nil, encodingError(fmt.Errorf("job %s tardiness %d, expected %d", jv.JobID, tardiness, want))
		}
		schedule.TotalTardiness += tardiness
		schedule.Jobs = append(schedule.Jobs, models.JobOutcome{
			JobID:             jv.JobID,
			Deadline:          jv.Deadline,
			DeadlineDefaulted: jv.DeadlineDefaulted,
			Completion:        completion,
			Tardiness:         tardiness,
		})
	}

	makespan, err := value(f.Makespan)
	if err != nil {
		return nil, err
	}
	if makespan != maxEnd {
		return nil, encodingError(fmt.Errorf("makespan %d differs from last task end %d", makespan, maxEnd))
	}
	schedule.Makespan = makespan
	return schedule, nil
}

// verifyTasks checks bounds, durations, intra-job order and machine
// exclusivity. tasks must be ordered by (jobId, taskId).
func verifyTasks(horizon int64, tasks []models.ScheduledTask) error {
	for i, task := range tasks {
		if task.Start < 0 || task.End > horizon {
			return fmt.Errorf("task %s/%s window [%d, %d) exceeds [0, %d]", task.JobID, task.TaskID, task.Start, task.End, horizon)
		}
		if task.End-task.Start != task.Duration {
			return fmt.Errorf("task %s/%s spans %d, duration is %d", task.JobID, task.TaskID, task.End-task.Start, task.Duration)
		}
		if i > 0 && tasks[i-1].JobID == task.JobID && tasks[i-1].End > task.Start {
			return fmt.Errorf("task %s/%s starts at %d before its predecessor ends at %d", task.JobID, task.TaskID, task.Start, tasks[i-1].End)
		}
	}

	busy := make([]models.ScheduledTask, 0, len(tasks))
	for _, task := range tasks {
		if task.Duration > 0 {
			busy = append(busy, task)
		}
	}
	models.SortByMachineStart(busy)
	for i := 1; i < len(busy); i++ {
		prev, cur := busy[i-1], busy[i]
		if prev.MachineID == cur.MachineID && prev.End > cur.Start {
			return fmt.Errorf("machine %s runs %s/%s and %s/%s at the same time", cur.MachineID, prev.JobID, prev.TaskID, cur.JobID, cur.TaskID)
		}
	}
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
