package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/jobshop-api/internal/dto"
	"github.com/noah-isme/jobshop-api/internal/jobshop"
	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/repository"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
	"github.com/noah-isme/jobshop-api/pkg/export"
	"github.com/noah-isme/jobshop-api/pkg/jobs"
)

// JobKindSolve tags queue jobs that solve a persisted schedule run.
const JobKindSolve = "solve"

type schedulePipeline interface {
	Solve(ctx context.Context, inst *models.Instance, opts jobshop.Options) (*jobshop.Result, error)
}

type scheduleRunStore interface {
	Create(ctx context.Context, run *models.ScheduleRun) error
	GetByID(ctx context.Context, id string) (*models.ScheduleRun, error)
	Update(ctx context.Context, id string, params repository.UpdateScheduleRunParams) error
	List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error)
	ListQueued(ctx context.Context, limit int) ([]models.ScheduleRun, error)
	Delete(ctx context.Context, id string) error
}

type runDispatcher interface {
	Enqueue(job jobs.Job) error
	Depth() int
}

// ScheduleServiceConfig carries the server-side solve defaults and limits.
type ScheduleServiceConfig struct {
	TardinessWeight int64
	MaxSolveTime    time.Duration
	MaxTasks        int
	SampleDataPath  string
}

// ScheduleExport is a rendered run document ready for download.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ScheduleService validates solve requests, consults the result cache, runs
// the pipeline and manages asynchronous runs.
type ScheduleService struct {
	pipeline  schedulePipeline
	runs      scheduleRunStore
	queue     runDispatcher
	cache     *ResultCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleServiceConfig
}

// NewScheduleService constructs the service. runs and queue may be nil, in
// which case run operations report the feature as unavailable.
func NewScheduleService(pipeline schedulePipeline, runs scheduleRunStore, queue runDispatcher, cache *ResultCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ScheduleServiceConfig) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.TardinessWeight < 0 {
		cfg.TardinessWeight = jobshop.DefaultTardinessWeight
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 200
	}
	return &ScheduleService{
		pipeline:  pipeline,
		runs:      runs,
		queue:     queue,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Solve validates and solves a JSON request synchronously.
func (s *ScheduleService) Solve(ctx context.Context, req dto.SolveRequest) (*models.ScheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid solve payload")
	}
	params, err := s.runParams(req.Records(), req.Options)
	if err != nil {
		return nil, err
	}
	return s.SolveParams(ctx, params)
}

// SolveCSV parses an uploaded CSV instance and solves it synchronously.
func (s *ScheduleService) SolveCSV(ctx context.Context, r io.Reader, opts dto.SolveOptions) (*models.ScheduleResult, error) {
	if err := s.validator.Struct(opts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid solve options")
	}
	records, err := jobshop.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	params, err := s.runParams(records, opts)
	if err != nil {
		return nil, err
	}
	return s.SolveParams(ctx, params)
}

// Validate loads the records without solving and summarises the instance.
func (s *ScheduleService) Validate(ctx context.Context, req dto.SolveRequest) (*dto.ValidateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid solve payload")
	}
	records := req.Records()
	if err := s.checkSize(len(records)); err != nil {
		return nil, err
	}
	inst, err := jobshop.Load(records)
	if err != nil {
		return nil, err
	}
	if len(inst.Tasks) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyInstance, "")
	}
	return &dto.ValidateResponse{
		Tasks:    len(inst.Tasks),
		Jobs:     len(inst.Jobs),
		Machines: inst.Machines,
		Horizon:  inst.Horizon,
	}, nil
}

// SolveParams runs the pipeline for stored or freshly validated parameters.
// OPTIMAL results are served from and written to the cache.
func (s *ScheduleService) SolveParams(ctx context.Context, params models.ScheduleRunParams) (*models.ScheduleResult, error) {
	if err := s.checkSize(len(params.Records)); err != nil {
		return nil, err
	}
	inst, err := jobshop.Load(params.Records)
	if err != nil {
		s.metrics.ObserveSolve(appErrors.FromError(err).Code, 0, 0, true)
		return nil, err
	}

	fingerprint := jobshop.Fingerprint(inst, params.TardinessWeight)
	if cached, ok := s.cache.Lookup(ctx, fingerprint); ok {
		s.logger.Debug("schedule served from cache", zap.String("fingerprint", fingerprint))
		return cached, nil
	}

	start := time.Now()
	result, err := s.pipeline.Solve(ctx, inst, jobshop.Options{
		TardinessWeight: params.TardinessWeight,
		MaxSolveTime:    time.Duration(params.MaxSolveTimeMs) * time.Millisecond,
	})
	if err != nil {
		s.metrics.ObserveSolve(appErrors.FromError(err).Code, time.Since(start), 0, true)
		return nil, err
	}

	report := result.Report()
	s.metrics.ObserveSolve(report.Status, time.Since(start), report.Stats.Nodes, false)
	s.cache.Store(ctx, fingerprint, &report)
	return &report, nil
}

// Sample returns the bundled sample instance.
func (s *ScheduleService) Sample(ctx context.Context) ([]models.TaskRecord, error) {
	if s.cfg.SampleDataPath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sample data is not configured")
	}
	f, err := os.Open(s.cfg.SampleDataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sample data not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open sample data")
	}
	defer f.Close()
	return jobshop.ReadCSV(f)
}

// SubmitRun validates and persists an asynchronous run and hands it to the worker pool.
func (s *ScheduleService) SubmitRun(ctx context.Context, req dto.CreateScheduleRunRequest, actorID string) (*dto.ScheduleRunResponse, error) {
	if err := s.runsAvailable(); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload")
	}
	params, err := s.runParams(req.SolveRequest().Records(), req.Options)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(len(params.Records)); err != nil {
		return nil, err
	}
	if _, err := jobshop.Load(params.Records); err != nil {
		return nil, err
	}

	run := &models.ScheduleRun{
		Name:      req.Name,
		Status:    models.ScheduleRunStatusQueued,
		Params:    params,
		CreatedBy: actorID,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule run")
	}
	s.metrics.ObserveRunTransition(string(run.Status))

	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Kind: JobKindSolve}); err != nil {
		failed := models.ScheduleRunStatusFailed
		code := appErrors.ErrInternal.Code
		msg := "failed to enqueue run"
		now := time.Now().UTC()
		if updateErr := s.runs.Update(ctx, run.ID, repository.UpdateScheduleRunParams{
			Status:       &failed,
			ErrorCode:    &code,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(updateErr))
		}
		s.metrics.ObserveRunTransition(string(failed))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue schedule run")
	}
	s.metrics.SetQueueDepth(s.queue.Depth())

	s.logger.Info("schedule run queued", zap.String("run_id", run.ID), zap.Int("tasks", len(params.Records)), zap.String("created_by", actorID))
	resp := dto.NewScheduleRunResponse(run, false)
	return &resp, nil
}

// GetRun returns a run including its result when finished.
func (s *ScheduleService) GetRun(ctx context.Context, id string) (*dto.ScheduleRunResponse, error) {
	if err := s.runsAvailable(); err != nil {
		return nil, err
	}
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewScheduleRunResponse(run, true)
	return &resp, nil
}

// ListRuns pages through runs newest first.
func (s *ScheduleService) ListRuns(ctx context.Context, query dto.ScheduleRunQuery) ([]dto.ScheduleRunResponse, *models.Pagination, error) {
	if err := s.runsAvailable(); err != nil {
		return nil, nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run query")
	}
	filter := models.ScheduleRunFilter{Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if query.Status != "" {
		status := models.ScheduleRunStatus(query.Status)
		filter.Status = &status
	}

	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule runs")
	}
	items := make([]dto.ScheduleRunResponse, len(runs))
	for i := range runs {
		items[i] = dto.NewScheduleRunResponse(&runs[i], false)
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// DeleteRun removes a run that is not currently being solved.
func (s *ScheduleService) DeleteRun(ctx context.Context, id string) error {
	if err := s.runsAvailable(); err != nil {
		return err
	}
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return err
	}
	if run.Status == models.ScheduleRunStatusRunning {
		return appErrors.Clone(appErrors.ErrConflict, "schedule run is being solved")
	}
	if err := s.runs.Delete(ctx, id); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule run")
	}
	s.logger.Info("schedule run deleted", zap.String("run_id", id))
	return nil
}

// ExportRun renders the machine-ordered schedule of a finished run.
func (s *ScheduleService) ExportRun(ctx context.Context, id, format string) (*ScheduleExport, error) {
	if err := s.runsAvailable(); err != nil {
		return nil, err
	}
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.ScheduleRunStatusSucceeded || run.Result == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule run has no result yet")
	}

	body, err := renderer.Render(ScheduleDataset(run.Result, runTitle(run)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ScheduleExport{
		Filename:    fmt.Sprintf("schedule-%s.%s", run.ID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// FlushCache drops every cached solve result.
func (s *ScheduleService) FlushCache(ctx context.Context) error {
	if err := s.cache.Flush(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to flush result cache")
	}
	s.logger.Info("result cache flushed")
	return nil
}

// RecoverPendingRuns replays queued runs (e.g. after process restart).
func (s *ScheduleService) RecoverPendingRuns(ctx context.Context) {
	if s.runs == nil || s.queue == nil {
		return
	}
	pending, err := s.runs.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued schedule runs", "error", err)
		return
	}
	for _, run := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Kind: JobKindSolve}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending run", "run_id", run.ID, "error", err)
		}
	}
	if len(pending) > 0 {
		s.logger.Sugar().Infow("recovered queued schedule runs", "count", len(pending))
	}
	s.metrics.SetQueueDepth(s.queue.Depth())
}

// ScheduleDataset flattens a result into an exportable table with a Gantt chart.
func ScheduleDataset(result *models.ScheduleResult, title string) export.Dataset {
	rows := make([][]string, len(result.ByMachine))
	for i, task := range result.ByMachine {
		rows[i] = []string{
			task.MachineID.String(),
			task.JobID.String(),
			task.TaskID.String(),
			strconv.FormatInt(task.Start, 10),
			strconv.FormatInt(task.End, 10),
			strconv.FormatInt(task.Duration, 10),
		}
	}

	lanes := make([]export.Lane, len(result.Gantt))
	for i, lane := range result.Gantt {
		bars := make([]export.Bar, len(lane.Bars))
		for j, bar := range lane.Bars {
			bars[j] = export.Bar{
				Label: fmt.Sprintf("J%s/T%s", bar.JobID, bar.TaskID),
				Group: bar.JobID.String(),
				Start: bar.Start,
				End:   bar.End,
			}
		}
		lanes[i] = export.Lane{Label: lane.MachineID.String(), Bars: bars}
	}

	return export.Dataset{
		Title:   title,
		Headers: []string{"Machine", "Job", "Task", "Start", "End", "Duration"},
		Rows:    rows,
		Chart:   &export.Chart{Span: result.Makespan, Lanes: lanes},
	}
}

func runTitle(run *models.ScheduleRun) string {
	if run.Name != "" {
		return run.Name
	}
	return "Schedule " + run.ID
}

func (s *ScheduleService) runParams(records []models.TaskRecord, opts dto.SolveOptions) (models.ScheduleRunParams, error) {
	weight := s.cfg.TardinessWeight
	if opts.TardinessWeight != nil {
		weight = *opts.TardinessWeight
	}
	timeout, err := opts.Timeout()
	if err != nil {
		return models.ScheduleRunParams{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maxSolveTime")
	}
	if timeout == 0 || (s.cfg.MaxSolveTime > 0 && timeout > s.cfg.MaxSolveTime) {
		timeout = s.cfg.MaxSolveTime
	}
	return models.ScheduleRunParams{
		Records:         records,
		TardinessWeight: weight,
		MaxSolveTimeMs:  timeout.Milliseconds(),
	}, nil
}

func (s *ScheduleService) checkSize(tasks int) error {
	if tasks > s.cfg.MaxTasks {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("instance has %d tasks, limit is %d", tasks, s.cfg.MaxTasks))
	}
	return nil
}

func (s *ScheduleService) runsAvailable() error {
	if s.runs == nil || s.queue == nil {
		return appErrors.Clone(appErrors.ErrUnavailable, "schedule runs are not enabled")
	}
	return nil
}

func (s *ScheduleService) loadRun(ctx context.Context, id string) (*models.ScheduleRun, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule run")
	}
	return run, nil
}
