package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/jobshop-api/internal/models"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
)

// MemoryScheduleRunRepository keeps runs in process memory. It backs the run
// endpoints when no database is configured; runs do not survive a restart.
type MemoryScheduleRunRepository struct {
	mu   sync.RWMutex
	runs map[string]models.ScheduleRun
}

// NewMemoryScheduleRunRepository constructs an empty store.
func NewMemoryScheduleRunRepository() *MemoryScheduleRunRepository {
	return &MemoryScheduleRunRepository{runs: make(map[string]models.ScheduleRun)}
}

func (r *MemoryScheduleRunRepository) Create(ctx context.Context, run *models.ScheduleRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.ScheduleRunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[run.ID]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "schedule run already exists")
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *MemoryScheduleRunRepository) GetByID(ctx context.Context, id string) (*models.ScheduleRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	return &run, nil
}

func (r *MemoryScheduleRunRepository) Update(ctx context.Context, id string, params UpdateScheduleRunParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.Result != nil {
		result := *params.Result
		run.Result = &result
	}
	if params.ErrorCode != nil {
		code := *params.ErrorCode
		run.ErrorCode = &code
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		run.ErrorMessage = &msg
	}
	if params.StartedAt != nil {
		started := *params.StartedAt
		run.StartedAt = &started
	}
	if params.FinishedAt != nil {
		finished := *params.FinishedAt
		run.FinishedAt = &finished
	}
	r.runs[id] = run
	return nil
}

func (r *MemoryScheduleRunRepository) List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)

	r.mu.RLock()
	matched := make([]models.ScheduleRun, 0, len(r.runs))
	for _, run := range r.runs {
		if filter.Status != nil && run.Status != *filter.Status {
			continue
		}
		matched = append(matched, run)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []models.ScheduleRun{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryScheduleRunRepository) ListQueued(ctx context.Context, limit int) ([]models.ScheduleRun, error) {
	status := models.ScheduleRunStatusQueued
	runs, _, err := r.List(ctx, models.ScheduleRunFilter{Status: &status, Page: 1, PageSize: 100})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *MemoryScheduleRunRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	delete(r.runs, id)
	return nil
}

func (r *MemoryScheduleRunRepository) Ping(ctx context.Context) error {
	return nil
}
