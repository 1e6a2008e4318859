package cpmodel

import (
	"fmt"
)

// VarID references an integer variable declared on a Model.
type VarID int

// IntervalID references an interval declared on a Model.
type IntervalID int

// IntVar is a bounded integer decision variable.
type IntVar struct {
	ID   VarID
	Name string
	Lo   int64
	Hi   int64
}

// Interval ties a start and end variable with a fixed size: End = Start + Size.
type Interval struct {
	ID    IntervalID
	Name  string
	Start VarID
	End   VarID
	Size  int64
}

// Term is a single coefficient * variable product.
type Term struct {
	Var   VarID
	Coeff int64
}

// LinearExpr is Σ Terms + Constant.
type LinearExpr struct {
	Terms    []Term
	Constant int64
}

// Constant builds an expression without variables.
func Constant(value int64) LinearExpr {
	return LinearExpr{Constant: value}
}

// VarExpr builds the expression 1*v + offset.
func VarExpr(v VarID, offset int64) LinearExpr {
	return LinearExpr{Terms: []Term{{Var: v, Coeff: 1}}, Constant: offset}
}

// Eval computes the expression value using the supplied lookup.
func (e LinearExpr) Eval(value func(VarID) int64) int64 {
	total := e.Constant
	for _, term := range e.Terms {
		total += term.Coeff * value(term.Var)
	}
	return total
}

// NoOverlap forbids any two member intervals from sharing time.
type NoOverlap struct {
	Name      string
	Intervals []IntervalID
}

// Precedence requires End(Before) <= Start(After).
type Precedence struct {
	Before IntervalID
	After  IntervalID
}

// MaxEquality constrains Target == max(Exprs).
type MaxEquality struct {
	Target VarID
	Exprs  []LinearExpr
}

// Model is a solver-agnostic scheduling formulation. It is built once and then
// treated as read-only by solvers.
type Model struct {
	vars        []IntVar
	intervals   []Interval
	noOverlaps  []NoOverlap
	precedences []Precedence
	maxEqs      []MaxEquality
	objective   LinearExpr
	minimize    bool
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewIntVar declares a variable with domain [lo, hi].
func (m *Model) NewIntVar(lo, hi int64, name string) VarID {
	id := VarID(len(m.vars))
	m.vars = append(m.vars, IntVar{ID: id, Name: name, Lo: lo, Hi: hi})
	return id
}

// NewIntervalVar declares an interval linking start and end with a fixed size.
func (m *Model) NewIntervalVar(start, end VarID, size int64, name string) IntervalID {
	id := IntervalID(len(m.intervals))
	m.intervals = append(m.intervals, Interval{ID: id, Name: name, Start: start, End: end, Size: size})
	return id
}

// AddNoOverlap registers a disjunctive resource over the given intervals.
func (m *Model) AddNoOverlap(name string, intervals ...IntervalID) {
	members := make([]IntervalID, len(intervals))
	copy(members, intervals)
	m.noOverlaps = append(m.noOverlaps, NoOverlap{Name: name, Intervals: members})
}

// AddPrecedence requires before to finish no later than after starts.
func (m *Model) AddPrecedence(before, after IntervalID) {
	m.precedences = append(m.precedences, Precedence{Before: before, After: after})
}

// AddMaxEquality constrains target to equal the maximum of exprs.
func (m *Model) AddMaxEquality(target VarID, exprs ...LinearExpr) {
	copied := make([]LinearExpr, len(exprs))
	for i, expr := range exprs {
		terms := make([]Term, len(expr.Terms))
		copy(terms, expr.Terms)
		copied[i] = LinearExpr{Terms: terms, Constant: expr.Constant}
	}
	m.maxEqs = append(m.maxEqs, MaxEquality{Target: target, Exprs: copied})
}

// Minimize sets the objective.
func (m *Model) Minimize(expr LinearExpr) {
	terms := make([]Term, len(expr.Terms))
	copy(terms, expr.Terms)
	m.objective = LinearExpr{Terms: terms, Constant: expr.Constant}
	m.minimize = true
}

// Vars returns the declared variables.
func (m *Model) Vars() []IntVar { return m.vars }

// Var returns the variable with the given id.
func (m *Model) Var(id VarID) IntVar { return m.vars[id] }

// Intervals returns the declared intervals.
func (m *Model) Intervals() []Interval { return m.intervals }

// NoOverlaps returns the disjunctive groups.
func (m *Model) NoOverlaps() []NoOverlap { return m.noOverlaps }

// Precedences returns the interval precedences.
func (m *Model) Precedences() []Precedence { return m.precedences }

// MaxEqualities returns the max constraints.
func (m *Model) MaxEqualities() []MaxEquality { return m.maxEqs }

// Objective returns the minimization objective and whether one was set.
func (m *Model) Objective() (LinearExpr, bool) { return m.objective, m.minimize }

// Validate checks that every reference resolves and every domain is well formed.
func (m *Model) Validate() error {
	for _, v := range m.vars {
		if v.Lo > v.Hi {
			return fmt.Errorf("variable %s has empty domain [%d, %d]", v.Name, v.Lo, v.Hi)
		}
	}
	for _, iv := range m.intervals {
		if !m.hasVar(iv.Start) || !m.hasVar(iv.End) {
			return fmt.Errorf("interval %s references unknown variable", iv.Name)
		}
		if iv.Size < 0 {
			return fmt.Errorf("interval %s has negative size %d", iv.Name, iv.Size)
		}
	}
	for _, group := range m.noOverlaps {
		for _, id := range group.Intervals {
			if !m.hasInterval(id) {
				return fmt.Errorf("no-overlap %s references unknown interval %d", group.Name, id)
			}
		}
	}
	for _, p := range m.precedences {
		if !m.hasInterval(p.Before) || !m.hasInterval(p.After) {
			return fmt.Errorf("precedence references unknown interval %d -> %d", p.Before, p.After)
		}
	}
	for _, eq := range m.maxEqs {
		if !m.hasVar(eq.Target) {
			return fmt.Errorf("max equality targets unknown variable %d", eq.Target)
		}
		if len(eq.Exprs) == 0 {
			return fmt.Errorf("max equality on %s has no expressions", m.vars[eq.Target].Name)
		}
		for _, expr := range eq.Exprs {
			if err := m.validateExpr(expr); err != nil {
				return fmt.Errorf("max equality on %s: %w", m.vars[eq.Target].Name, err)
			}
		}
	}
	if m.minimize {
		if err := m.validateExpr(m.objective); err != nil {
			return fmt.Errorf("objective: %w", err)
		}
	}
	return nil
}

func (m *Model) validateExpr(expr LinearExpr) error {
	for _, term := range expr.Terms {
		if !m.hasVar(term.Var) {
			return fmt.Errorf("unknown variable %d", term.Var)
		}
	}
	return nil
}

func (m *Model) hasVar(id VarID) bool {
	return id >= 0 && int(id) < len(m.vars)
}

func (m *Model) hasInterval(id IntervalID) bool {
	return id >= 0 && int(id) < len(m.intervals)
}
