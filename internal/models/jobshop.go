package models

import (
	"sort"
	"strconv"
	"strings"
)

// ID identifies a job, task or machine. IDs that both parse as integers
// order numerically; anything else orders lexically.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// CompareIDs returns -1, 0 or 1. Integer IDs sort numerically and before
// every other ID; the rest sort as text.
func CompareIDs(a, b ID) int {
	ai, aErr := strconv.ParseInt(strings.TrimSpace(string(a)), 10, 64)
	bi, bErr := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	aNum, bNum := aErr == nil, bErr == nil
	switch {
	case aNum && !bNum:
		return -1
	case !aNum && bNum:
		return 1
	case aNum && bNum:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
	}
	return strings.Compare(string(a), string(b))
}

// SortIDs sorts ids in place using CompareIDs.
func SortIDs(ids []ID) {
	sort.SliceStable(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
}

// TaskRecord is a single raw input row. Every field arrives as text; Deadline
// is empty when absent.
type TaskRecord struct {
	JobID     string `json:"jobId"`
	TaskID    string `json:"taskId"`
	MachineID string `json:"machineId"`
	Duration  string `json:"duration"`
	Deadline  string `json:"deadline,omitempty"`
}

// Task is an indivisible unit of work on one machine.
type Task struct {
	JobID     ID    `json:"jobId"`
	TaskID    ID    `json:"taskId"`
	MachineID ID    `json:"machineId"`
	Duration  int64 `json:"duration"`
}

// Job is an ordered sequence of tasks sharing one deadline.
type Job struct {
	ID                ID     `json:"jobId"`
	Tasks             []Task `json:"tasks"`
	Deadline          int64  `json:"deadline"`
	DeadlineDefaulted bool   `json:"deadlineDefaulted"`
}

// Instance is a validated, immutable problem.
type Instance struct {
	Tasks    []Task `json:"tasks"`
	Jobs     []Job  `json:"jobs"`
	Machines []ID   `json:"machines"`
	Horizon  int64  `json:"horizon"`
}

// ScheduledTask is a Task with its realised time window [Start, End).
type ScheduledTask struct {
	Task
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// UtilizationMap maps a machine to its busy fraction of the horizon.
type UtilizationMap map[ID]float64

// Average returns the mean utilization across machines, or 0 when empty.
func (u UtilizationMap) Average() float64 {
	if len(u) == 0 {
		return 0
	}
	var total float64
	for _, v := range u {
		total += v
	}
	return total / float64(len(u))
}

// SortByJobTask orders tasks canonically by (jobId, taskId).
func SortByJobTask(tasks []ScheduledTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if c := CompareIDs(tasks[i].JobID, tasks[j].JobID); c != 0 {
			return c < 0
		}
		return CompareIDs(tasks[i].TaskID, tasks[j].TaskID) < 0
	})
}

// SortByMachineStart orders tasks for presentation by (machineId, start).
func SortByMachineStart(tasks []ScheduledTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if c := CompareIDs(tasks[i].MachineID, tasks[j].MachineID); c != 0 {
			return c < 0
		}
		if tasks[i].Start != tasks[j].Start {
			return tasks[i].Start < tasks[j].Start
		}
		if c := CompareIDs(tasks[i].JobID, tasks[j].JobID); c != 0 {
			return c < 0
		}
		return CompareIDs(tasks[i].TaskID, tasks[j].TaskID) < 0
	})
}
