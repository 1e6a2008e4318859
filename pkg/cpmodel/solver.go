package cpmodel

import (
	"context"
	"time"
)

// Status reports the outcome of a search.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

// String renders the status the way solvers conventionally print it.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

// HasSolution reports whether the status carries a full assignment.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Params bounds a single Solve call.
type Params struct {
	MaxDuration time.Duration
}

// Stats summarises search effort.
type Stats struct {
	Nodes    int64
	Elapsed  time.Duration
	TimedOut bool
}

// Solution is the solver output. Values is indexed by VarID and is only
// populated when Status.HasSolution() is true.
type Solution struct {
	Status         Status
	Values         []int64
	ObjectiveValue int64
	Stats          Stats
}

// Value returns the assigned value of v.
func (s *Solution) Value(v VarID) (int64, bool) {
	if s == nil || v < 0 || int(v) >= len(s.Values) {
		return 0, false
	}
	return s.Values[v], true
}

// Solver searches a Model for an assignment minimizing its objective.
type Solver interface {
	Solve(ctx context.Context, model *Model, params Params) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, model *Model, params Params) (*Solution, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, model *Model, params Params) (*Solution, error) {
	return f(ctx, model, params)
}
