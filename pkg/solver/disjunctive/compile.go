package disjunctive

import (
	"errors"
	"fmt"

	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
)

// ErrUnsupported is returned for models outside the subset this backend can search.
var ErrUnsupported = errors.New("unsupported model")

type varRole int

const (
	roleFree varRole = iota
	roleStart
	roleEnd
	roleTarget
)

// problem is the flattened, index-based view of a cpmodel.Model.
type problem struct {
	vars []cpmodel.IntVar
	n    int

	size        []int64
	startVar    []cpmodel.VarID
	endVar      []cpmodel.VarID
	release     []int64
	latestStart []int64

	group  []int
	groups [][]int

	preds [][]int
	succs [][]int
	topo  []int

	maxEqs     []cpmodel.MaxEquality
	eqOrder    []int
	groupCover [][]int

	objective cpmodel.LinearExpr
}

func compile(m *cpmodel.Model) (*problem, error) {
	vars := m.Vars()
	intervals := m.Intervals()
	p := &problem{
		vars:        vars,
		n:           len(intervals),
		size:        make([]int64, len(intervals)),
		startVar:    make([]cpmodel.VarID, len(intervals)),
		endVar:      make([]cpmodel.VarID, len(intervals)),
		release:     make([]int64, len(intervals)),
		latestStart: make([]int64, len(intervals)),
		group:       make([]int, len(intervals)),
		preds:       make([][]int, len(intervals)),
		succs:       make([][]int, len(intervals)),
		maxEqs:      m.MaxEqualities(),
	}

	roles := make([]varRole, len(vars))
	claim := func(v cpmodel.VarID, role varRole) error {
		if roles[v] != roleFree {
			return fmt.Errorf("%w: variable %s is bound twice", ErrUnsupported, vars[v].Name)
		}
		roles[v] = role
		return nil
	}

	for i, iv := range intervals {
		if err := claim(iv.Start, roleStart); err != nil {
			return nil, err
		}
		if err := claim(iv.End, roleEnd); err != nil {
			return nil, err
		}
		start, end := vars[iv.Start], vars[iv.End]
		p.size[i] = iv.Size
		p.startVar[i] = iv.Start
		p.endVar[i] = iv.End
		p.release[i] = max64(start.Lo, end.Lo-iv.Size)
		p.latestStart[i] = min64(start.Hi, end.Hi-iv.Size)
		p.group[i] = -1
	}

	// Intervals are half-open, so a zero-size interval never overlaps anything
	// and is left out of its group. It is then placed at its earliest start.
	grouped := make([]bool, len(intervals))
	for g, group := range m.NoOverlaps() {
		members := make([]int, 0, len(group.Intervals))
		for _, id := range group.Intervals {
			if grouped[id] {
				return nil, fmt.Errorf("%w: interval %s belongs to more than one no-overlap group", ErrUnsupported, intervals[id].Name)
			}
			grouped[id] = true
			if p.size[id] == 0 {
				continue
			}
			p.group[id] = g
			members = append(members, int(id))
		}
		p.groups = append(p.groups, members)
	}

	for _, prec := range m.Precedences() {
		before, after := int(prec.Before), int(prec.After)
		p.preds[after] = append(p.preds[after], before)
		p.succs[before] = append(p.succs[before], after)
	}
	topo, err := p.topologicalOrder()
	if err != nil {
		return nil, err
	}
	p.topo = topo

	for _, eq := range p.maxEqs {
		if err := claim(eq.Target, roleTarget); err != nil {
			return nil, err
		}
		for _, expr := range eq.Exprs {
			if err := requireMonotone(expr); err != nil {
				return nil, fmt.Errorf("max equality on %s: %w", vars[eq.Target].Name, err)
			}
		}
	}
	order, err := p.maxEqualityOrder()
	if err != nil {
		return nil, err
	}
	p.eqOrder = order
	p.groupCover = p.coveredGroups()

	objective, ok := m.Objective()
	if !ok {
		objective = cpmodel.Constant(0)
	}
	if err := requireMonotone(objective); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	p.objective = objective

	return p, nil
}

func (p *problem) topologicalOrder() ([]int, error) {
	indegree := make([]int, p.n)
	for i := 0; i < p.n; i++ {
		indegree[i] = len(p.preds[i])
	}
	queue := make([]int, 0, p.n)
	for i := 0; i < p.n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, p.n)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		order = append(order, next)
		for _, succ := range p.succs[next] {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if len(order) != p.n {
		return nil, fmt.Errorf("%w: precedence graph contains a cycle", ErrUnsupported)
	}
	return order, nil
}

// maxEqualityOrder sorts max constraints so every target is computed before
// it is read by another constraint.
func (p *problem) maxEqualityOrder() ([]int, error) {
	definedBy := make(map[cpmodel.VarID]int, len(p.maxEqs))
	for idx, eq := range p.maxEqs {
		definedBy[eq.Target] = idx
	}
	dependents := make([][]int, len(p.maxEqs))
	indegree := make([]int, len(p.maxEqs))
	for idx, eq := range p.maxEqs {
		seen := map[int]struct{}{}
		for _, expr := range eq.Exprs {
			for _, term := range expr.Terms {
				dep, ok := definedBy[term.Var]
				if !ok {
					continue
				}
				if _, dup := seen[dep]; dup {
					continue
				}
				seen[dep] = struct{}{}
				dependents[dep] = append(dependents[dep], idx)
				indegree[idx]++
			}
		}
	}
	queue := make([]int, 0, len(p.maxEqs))
	for idx := range p.maxEqs {
		if indegree[idx] == 0 {
			queue = append(queue, idx)
		}
	}
	order := make([]int, 0, len(p.maxEqs))
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(order) != len(p.maxEqs) {
		return nil, fmt.Errorf("%w: max equalities are cyclic", ErrUnsupported)
	}
	return order, nil
}

// coveredGroups lists, per max constraint, the no-overlap groups whose every
// end variable appears as a plain term. The target is then at least the
// earliest time the whole group can drain.
func (p *problem) coveredGroups() [][]int {
	endOf := make(map[cpmodel.VarID]int, p.n)
	for i := 0; i < p.n; i++ {
		endOf[p.endVar[i]] = i
	}
	covered := make([][]int, len(p.maxEqs))
	for idx, eq := range p.maxEqs {
		present := make(map[int]struct{})
		for _, expr := range eq.Exprs {
			if expr.Constant != 0 || len(expr.Terms) != 1 || expr.Terms[0].Coeff != 1 {
				continue
			}
			if interval, ok := endOf[expr.Terms[0].Var]; ok {
				present[interval] = struct{}{}
			}
		}
		if len(present) == 0 {
			continue
		}
		for g, members := range p.groups {
			if len(members) == 0 {
				continue
			}
			all := true
			for _, member := range members {
				if _, ok := present[member]; !ok {
					all = false
					break
				}
			}
			if all {
				covered[idx] = append(covered[idx], g)
			}
		}
	}
	return covered
}

func requireMonotone(expr cpmodel.LinearExpr) error {
	for _, term := range expr.Terms {
		if term.Coeff < 0 {
			return fmt.Errorf("%w: negative coefficient on variable %d", ErrUnsupported, term.Var)
		}
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
