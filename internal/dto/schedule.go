package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/jobshop-api/internal/models"
)

// FlexValue accepts a JSON string, number or null and keeps its textual form.
// Task fields arrive as either depending on the client; the loader parses them.
type FlexValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *FlexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FlexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*v = FlexValue(n.String())
	return nil
}

// TaskInput is one task row of a solve request.
type TaskInput struct {
	JobID     FlexValue `json:"jobId"`
	TaskID    FlexValue `json:"taskId"`
	MachineID FlexValue `json:"machineId"`
	Duration  FlexValue `json:"duration"`
	Deadline  FlexValue `json:"deadline,omitempty"`
}

// Record converts the input into the loader's raw record form.
func (t TaskInput) Record() models.TaskRecord {
	return models.TaskRecord{
		JobID:     string(t.JobID),
		TaskID:    string(t.TaskID),
		MachineID: string(t.MachineID),
		Duration:  string(t.Duration),
		Deadline:  string(t.Deadline),
	}
}

// SolveOptions tunes one solve. Omitted fields fall back to server defaults.
type SolveOptions struct {
	TardinessWeight *int64 `json:"tardinessWeight,omitempty" validate:"omitempty,min=0,max=1000000"`
	// MaxSolveTime is a Go duration string such as "5s".
	MaxSolveTime string `json:"maxSolveTime,omitempty" validate:"max=32"`
}

// Timeout parses MaxSolveTime. Zero means unset.
func (o SolveOptions) Timeout() (time.Duration, error) {
	if o.MaxSolveTime == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(o.MaxSolveTime)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", o.MaxSolveTime)
	}
	return d, nil
}

// SolveRequest captures POST /schedules/solve payload.
type SolveRequest struct {
	Tasks   []TaskInput  `json:"tasks" validate:"required"`
	Options SolveOptions `json:"options"`
}

// Records converts all task inputs preserving order.
func (r SolveRequest) Records() []models.TaskRecord {
	records := make([]models.TaskRecord, len(r.Tasks))
	for i, task := range r.Tasks {
		records[i] = task.Record()
	}
	return records
}

// CreateScheduleRunRequest captures POST /schedules/runs payload.
type CreateScheduleRunRequest struct {
	Name    string       `json:"name" validate:"max=128"`
	Tasks   []TaskInput  `json:"tasks" validate:"required"`
	Options SolveOptions `json:"options"`
}

// SolveRequest returns the solve part of the run request.
func (r CreateScheduleRunRequest) SolveRequest() SolveRequest {
	return SolveRequest{Tasks: r.Tasks, Options: r.Options}
}

// ScheduleRunQuery binds GET /schedules/runs query parameters.
type ScheduleRunQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=QUEUED RUNNING SUCCEEDED FAILED"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// ScheduleRunResponse is returned after enqueueing a run and by status lookups.
type ScheduleRunResponse struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name,omitempty"`
	Status       models.ScheduleRunStatus `json:"status"`
	TaskCount    int                      `json:"taskCount"`
	Result       *models.ScheduleResult   `json:"result,omitempty"`
	ErrorCode    *string                  `json:"errorCode,omitempty"`
	ErrorMessage *string                  `json:"errorMessage,omitempty"`
	CreatedBy    string                   `json:"createdBy,omitempty"`
	CreatedAt    time.Time                `json:"createdAt"`
	StartedAt    *time.Time               `json:"startedAt,omitempty"`
	FinishedAt   *time.Time               `json:"finishedAt,omitempty"`
}

// NewScheduleRunResponse maps a persisted run. Results are omitted when withResult is false.
func NewScheduleRunResponse(run *models.ScheduleRun, withResult bool) ScheduleRunResponse {
	resp := ScheduleRunResponse{
		ID:           run.ID,
		Name:         run.Name,
		Status:       run.Status,
		TaskCount:    len(run.Params.Records),
		ErrorCode:    run.ErrorCode,
		ErrorMessage: run.ErrorMessage,
		CreatedBy:    run.CreatedBy,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
	if withResult {
		resp.Result = run.Result
	}
	return resp
}

// ValidateResponse summarises an instance without solving it.
type ValidateResponse struct {
	Tasks    int         `json:"tasks"`
	Jobs     int         `json:"jobs"`
	Machines []models.ID `json:"machines"`
	Horizon  int64       `json:"horizon"`
}
