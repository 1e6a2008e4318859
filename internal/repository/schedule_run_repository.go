package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/jobshop-api/internal/models"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
)

const scheduleRunColumns = `id, name, status, params, result, error_code, error_message, created_by, created_at, started_at, finished_at`

// QueryObserver receives database timings. *service.MetricsService satisfies it.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// ScheduleRunStore is implemented by the Postgres and in-memory run stores.
type ScheduleRunStore interface {
	Create(ctx context.Context, run *models.ScheduleRun) error
	GetByID(ctx context.Context, id string) (*models.ScheduleRun, error)
	Update(ctx context.Context, id string, params UpdateScheduleRunParams) error
	List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error)
	ListQueued(ctx context.Context, limit int) ([]models.ScheduleRun, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

var (
	_ ScheduleRunStore = (*ScheduleRunRepository)(nil)
	_ ScheduleRunStore = (*MemoryScheduleRunRepository)(nil)
)

// ScheduleRunRepository persists asynchronous solve runs in the schedule_runs table.
type ScheduleRunRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewScheduleRunRepository constructs the repository. metrics may be nil.
func NewScheduleRunRepository(db *sqlx.DB, metrics QueryObserver) *ScheduleRunRepository {
	return &ScheduleRunRepository{db: db, metrics: metrics}
}

func (r *ScheduleRunRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// UpdateScheduleRunParams defines the mutable fields of a run.
type UpdateScheduleRunParams struct {
	Status       *models.ScheduleRunStatus
	Result       *models.ScheduleResult
	ErrorCode    *string
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Create inserts a new run row with generated defaults.
func (r *ScheduleRunRepository) Create(ctx context.Context, run *models.ScheduleRun) error {
	defer r.observe("schedule_runs.create", time.Now())
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.ScheduleRunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedule_runs (id, name, status, params, result, error_code, error_message, created_by, created_at, started_at, finished_at)
VALUES (:id, :name, :status, :params, :result, :error_code, :error_message, :created_by, :created_at, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create schedule run: %w", err)
	}
	return nil
}

// GetByID returns a run by its identifier.
func (r *ScheduleRunRepository) GetByID(ctx context.Context, id string) (*models.ScheduleRun, error) {
	defer r.observe("schedule_runs.get", time.Now())
	query := `SELECT ` + scheduleRunColumns + ` FROM schedule_runs WHERE id = $1`
	var run models.ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return nil, fmt.Errorf("get schedule run: %w", err)
	}
	return &run, nil
}

// Update persists the provided changes for a run.
func (r *ScheduleRunRepository) Update(ctx context.Context, id string, params UpdateScheduleRunParams) error {
	defer r.observe("schedule_runs.update", time.Now())
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Result != nil {
		add("result", *params.Result)
	}
	if params.ErrorCode != nil {
		add("error_code", *params.ErrorCode)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE schedule_runs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update schedule run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	return nil
}

// List returns one page of runs, newest first, and the total matching count.
func (r *ScheduleRunRepository) List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error) {
	defer r.observe("schedule_runs.list", time.Now())
	page, size := normalizePage(filter.Page, filter.PageSize)

	where := ""
	args := []interface{}{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = " WHERE status = $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedule_runs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule runs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM schedule_runs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		scheduleRunColumns, where, len(args)+1, len(args)+2)
	args = append(args, size, (page-1)*size)

	runs := []models.ScheduleRun{}
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule runs: %w", err)
	}
	return runs, total, nil
}

// ListQueued fetches queued runs oldest first (used for cold start recovery).
func (r *ScheduleRunRepository) ListQueued(ctx context.Context, limit int) ([]models.ScheduleRun, error) {
	defer r.observe("schedule_runs.list_queued", time.Now())
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + scheduleRunColumns + ` FROM schedule_runs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var runs []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued schedule runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run.
func (r *ScheduleRunRepository) Delete(ctx context.Context, id string) error {
	defer r.observe("schedule_runs.delete", time.Now())
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	return nil
}

// Ping reports database reachability to /ready.
func (r *ScheduleRunRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
