package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScheduleRunStatus captures asynchronous solve lifecycle states.
type ScheduleRunStatus string

const (
	ScheduleRunStatusQueued    ScheduleRunStatus = "QUEUED"
	ScheduleRunStatusRunning   ScheduleRunStatus = "RUNNING"
	ScheduleRunStatusSucceeded ScheduleRunStatus = "SUCCEEDED"
	ScheduleRunStatusFailed    ScheduleRunStatus = "FAILED"
)

// Finished reports whether the run reached a terminal state.
func (s ScheduleRunStatus) Finished() bool {
	return s == ScheduleRunStatusSucceeded || s == ScheduleRunStatusFailed
}

// ScheduleRun is a persisted asynchronous solve request and its outcome.
type ScheduleRun struct {
	ID           string            `db:"id" json:"id"`
	Name         string            `db:"name" json:"name"`
	Status       ScheduleRunStatus `db:"status" json:"status"`
	Params       ScheduleRunParams `db:"params" json:"params"`
	Result       *ScheduleResult   `db:"result" json:"result,omitempty"`
	ErrorCode    *string           `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string            `db:"created_by" json:"created_by"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	StartedAt    *time.Time        `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
}

// ScheduleRunFilter narrows run listings.
type ScheduleRunFilter struct {
	Status   *ScheduleRunStatus
	Page     int
	PageSize int
}

// ScheduleRunParams stores the submitted instance and solve options as JSONB.
type ScheduleRunParams struct {
	Records         []TaskRecord `json:"records"`
	TardinessWeight int64        `json:"tardinessWeight"`
	MaxSolveTimeMs  int64        `json:"maxSolveTimeMs,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ScheduleRunParams) Value() (driver.Value, error) {
	if p.Records == nil {
		p.Records = []TaskRecord{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule run params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ScheduleRunParams) Scan(value interface{}) error {
	data, err := jsonBytes(value, "ScheduleRunParams")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*p = ScheduleRunParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal schedule run params: %w", err)
	}
	return nil
}

// ScheduleResult is the full observable output of one solve.
type ScheduleResult struct {
	Status          string             `json:"status"`
	Objective       int64              `json:"objective"`
	Makespan        int64              `json:"makespan"`
	TotalTardiness  int64              `json:"totalTardiness"`
	TardinessWeight int64              `json:"tardinessWeight"`
	Horizon         int64              `json:"horizon"`
	Schedule        []ScheduledTask    `json:"schedule"`
	ByMachine       []ScheduledTask    `json:"byMachine"`
	Gantt           []GanttLane        `json:"gantt"`
	Jobs            []JobOutcome       `json:"jobs"`
	Utilization     UtilizationSummary `json:"utilization"`
	Stats           SolveStats         `json:"stats"`
	Cached          bool               `json:"cached"`
}

// JobOutcome reports completion and lateness for one job.
type JobOutcome struct {
	JobID             ID    `json:"jobId"`
	Deadline          int64 `json:"deadline"`
	DeadlineDefaulted bool  `json:"deadlineDefaulted"`
	Completion        int64 `json:"completion"`
	Tardiness         int64 `json:"tardiness"`
}

// UtilizationSummary compares machine load before and after optimisation.
type UtilizationSummary struct {
	Before             UtilizationMap `json:"before"`
	After              UtilizationMap `json:"after"`
	AverageBefore      float64        `json:"averageBefore"`
	AverageAfter       float64        `json:"averageAfter"`
	ImprovementPercent float64        `json:"improvementPercent"`
}

// GanttLane lists the bars executed on one machine in start order.
type GanttLane struct {
	MachineID ID         `json:"machineId"`
	Bars      []GanttBar `json:"bars"`
}

// GanttBar is one task occurrence on a lane.
type GanttBar struct {
	JobID  ID    `json:"jobId"`
	TaskID ID    `json:"taskId"`
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
}

// SolveStats summarises solver effort.
type SolveStats struct {
	Nodes     int64 `json:"nodes"`
	ElapsedMs int64 `json:"elapsedMs"`
	TimedOut  bool  `json:"timedOut"`
}

// Value marshals the result to JSON for persistence.
func (r ScheduleResult) Value() (driver.Value, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule result: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the result struct.
func (r *ScheduleResult) Scan(value interface{}) error {
	data, err := jsonBytes(value, "ScheduleResult")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*r = ScheduleResult{}
		return nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("unmarshal schedule result: %w", err)
	}
	return nil
}

func jsonBytes(value interface{}, target string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, target)
	}
}
