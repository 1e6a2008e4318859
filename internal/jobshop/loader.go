package jobshop

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/jobshop-api/internal/models"
)

// Input field names as they appear in CSV headers and error messages.
const (
	FieldJobID     = "JobID"
	FieldTaskID    = "TaskID"
	FieldMachineID = "MachineID"
	FieldDuration  = "Duration"
	FieldDeadline  = "Deadline"
)

// MaxHorizon caps the total work of an instance so every time value and the
// weighted objective stay well inside int64.
const MaxHorizon int64 = 1 << 40

type taskKey struct {
	job  models.ID
	task models.ID
}

type loadedRow struct {
	task        models.Task
	deadline    int64
	hasDeadline bool
}

// Load validates raw records and builds an immutable Instance. Records are
// read, never modified. A job's deadline is the one on its first record in
// input order; when that record has none the horizon is used.
func Load(records []models.TaskRecord) (*models.Instance, error) {
	if len(records) == 0 {
		return nil, emptyInstanceError()
	}

	rows := make([]loadedRow, 0, len(records))
	seen := make(map[taskKey]int, len(records))
	var horizon int64
	for i, rec := range records {
		row, err := parseRecord(i+1, rec)
		if err != nil {
			return nil, err
		}
		key := taskKey{job: row.task.JobID, task: row.task.TaskID}
		if first, dup := seen[key]; dup {
			return nil, schemaError(i+1, FieldTaskID, "duplicates row "+strconv.Itoa(first))
		}
		seen[key] = i + 1
		if row.task.Duration > MaxHorizon-horizon {
			return nil, schemaError(i+1, FieldDuration, "pushes total work past "+strconv.FormatInt(MaxHorizon, 10))
		}
		horizon += row.task.Duration
		rows = append(rows, row)
	}

	jobIndex := make(map[models.ID]int)
	jobs := make([]models.Job, 0)
	machineSet := make(map[models.ID]struct{})
	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		idx, ok := jobIndex[row.task.JobID]
		if !ok {
			job := models.Job{ID: row.task.JobID, Deadline: horizon, DeadlineDefaulted: true}
			if row.hasDeadline {
				job.Deadline = row.deadline
				job.DeadlineDefaulted = false
			}
			idx = len(jobs)
			jobIndex[row.task.JobID] = idx
			jobs = append(jobs, job)
		}
		jobs[idx].Tasks = append(jobs[idx].Tasks, row.task)
		machineSet[row.task.MachineID] = struct{}{}
		tasks = append(tasks, row.task)
	}

	sortTasks(tasks)
	for i := range jobs {
		sortTasks(jobs[i].Tasks)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return models.CompareIDs(jobs[i].ID, jobs[j].ID) < 0 })

	machines := make([]models.ID, 0, len(machineSet))
	for id := range machineSet {
		machines = append(machines, id)
	}
	models.SortIDs(machines)

	return &models.Instance{
		Tasks:    tasks,
		Jobs:     jobs,
		Machines: machines,
		Horizon:  horizon,
	}, nil
}

func parseRecord(row int, rec models.TaskRecord) (loadedRow, error) {
	jobID, err := requireID(row, FieldJobID, rec.JobID)
	if err != nil {
		return loadedRow{}, err
	}
	taskID, err := requireID(row, FieldTaskID, rec.TaskID)
	if err != nil {
		return loadedRow{}, err
	}
	machineID, err := requireID(row, FieldMachineID, rec.MachineID)
	if err != nil {
		return loadedRow{}, err
	}
	if strings.TrimSpace(rec.Duration) == "" {
		return loadedRow{}, schemaError(row, FieldDuration, "is required")
	}
	duration, err := parseNonNegative(row, FieldDuration, rec.Duration)
	if err != nil {
		return loadedRow{}, err
	}

	parsed := loadedRow{task: models.Task{JobID: jobID, TaskID: taskID, MachineID: machineID, Duration: duration}}
	if strings.TrimSpace(rec.Deadline) != "" {
		deadline, err := parseNonNegative(row, FieldDeadline, rec.Deadline)
		if err != nil {
			return loadedRow{}, err
		}
		parsed.deadline = deadline
		parsed.hasDeadline = true
	}
	return parsed, nil
}

func requireID(row int, field, raw string) (models.ID, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", schemaError(row, field, "is required")
	}
	return models.ID(value), nil
}

// parseNonNegative accepts integers and integral decimals such as "12.0",
// which spreadsheet exports commonly produce.
func parseNonNegative(row int, field, raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
			return 0, schemaError(row, field, "must be an integer")
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, schemaError(row, field, "must not be negative")
	}
	return n, nil
}

func sortTasks(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if c := models.CompareIDs(tasks[i].JobID, tasks[j].JobID); c != 0 {
			return c < 0
		}
		return models.CompareIDs(tasks[i].TaskID, tasks[j].TaskID) < 0
	})
}
