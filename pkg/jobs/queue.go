package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Kind     string
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// ExhaustedFunc observes a job that will not be attempted again.
type ExhaustedFunc func(context.Context, Job, error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers     int
	BufferSize  int
	MaxRetries  int
	RetryDelay  time.Duration
	OnExhausted ExhaustedFunc
	Logger      *zap.Logger
}

// Queue is an in-memory job dispatcher backed by a fixed goroutine pool.
type Queue struct {
	name    string
	handler Handler

	workers     int
	maxRetries  int
	retryDelay  time.Duration
	onExhausted ExhaustedFunc
	logger      *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:        name,
		handler:     handler,
		workers:     cfg.Workers,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		onExhausted: cfg.OnExhausted,
		logger:      cfg.Logger.With(zap.String("queue", name)),
		jobs:        make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for in-flight jobs to return.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Depth is the number of jobs waiting for a worker.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Error(err)}
	if q.ctx.Err() != nil {
		q.logger.Warn("job interrupted by shutdown", fields...)
		return
	}
	if IsPermanent(err) || job.Attempt >= q.maxRetries {
		q.logger.Error("job abandoned", append(fields, zap.Int("attempts", job.Attempt+1))...)
		if q.onExhausted != nil {
			q.onExhausted(q.ctx, job, err)
		}
		return
	}
	job.Attempt++
	q.logger.Warn("job failed, retrying", append(fields, zap.Int("attempt", job.Attempt))...)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}(job)
}
