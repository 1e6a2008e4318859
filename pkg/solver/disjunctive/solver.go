// Package disjunctive implements an exact branch-and-bound backend for
// cpmodel scheduling formulations built from intervals, disjunctive
// resources, precedences and max constraints.
package disjunctive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
)

// Config tunes the search.
type Config struct {
	// MaxDuration applies when the caller does not pass one in cpmodel.Params.
	MaxDuration time.Duration
	// NodeLimit stops the search after this many nodes. Zero means unlimited.
	NodeLimit int64
	Logger    *zap.Logger
}

// Solver satisfies cpmodel.Solver.
type Solver struct {
	cfg Config
}

// New constructs a Solver.
func New(cfg Config) *Solver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NodeLimit < 0 {
		cfg.NodeLimit = 0
	}
	return &Solver{cfg: cfg}
}

// Solve searches the model. The returned error is reserved for models the
// backend cannot handle; search outcomes are reported via Solution.Status.
func (s *Solver) Solve(ctx context.Context, model *cpmodel.Model, params cpmodel.Params) (*cpmodel.Solution, error) {
	if model == nil {
		return nil, fmt.Errorf("solve: model is nil")
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("solve: invalid model: %w", err)
	}
	prob, err := compile(model)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}

	maxDuration := params.MaxDuration
	if maxDuration <= 0 {
		maxDuration = s.cfg.MaxDuration
	}
	if maxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxDuration)
		defer cancel()
	}

	began := time.Now()
	search := newSearch(ctx, prob, s.cfg.NodeLimit)
	search.run()

	solution := &cpmodel.Solution{
		Stats: cpmodel.Stats{
			Nodes:    search.nodes,
			Elapsed:  time.Since(began),
			TimedOut: search.timedOut,
		},
	}
	switch {
	case search.found && !search.stopped:
		solution.Status = cpmodel.StatusOptimal
	case search.found:
		solution.Status = cpmodel.StatusFeasible
	case !search.stopped:
		solution.Status = cpmodel.StatusInfeasible
	default:
		solution.Status = cpmodel.StatusUnknown
	}
	if search.found {
		solution.Values = search.best
		solution.ObjectiveValue = search.bestValue
	}

	s.cfg.Logger.Debug("search finished",
		zap.String("status", solution.Status.String()),
		zap.Int64("nodes", solution.Stats.Nodes),
		zap.Duration("elapsed", solution.Stats.Elapsed),
		zap.Int("intervals", prob.n),
	)
	return solution, nil
}
