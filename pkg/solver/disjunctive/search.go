package disjunctive

import (
	"context"
	"sort"

	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
)

const ctxCheckInterval = 256

type candidate struct {
	interval int
	est      int64
}

// search is a depth-first branch and bound over active schedules. Each node
// fixes one more operation; branching follows Giffler and Thompson.
type search struct {
	p         *problem
	ctx       context.Context
	nodeLimit int64

	nodes    int64
	stopped  bool
	timedOut bool

	scheduled  []bool
	start      []int64
	pending    []int
	count      int
	groupReady []int64
	groupLeft  []int64
	groupOpen  []int

	head      []int64
	lb        []int64
	groupLB   []int64
	values    []int64
	best      []int64
	bestValue int64
	found     bool
}

func newSearch(ctx context.Context, p *problem, nodeLimit int64) *search {
	s := &search{
		p:          p,
		ctx:        ctx,
		nodeLimit:  nodeLimit,
		scheduled:  make([]bool, p.n),
		start:      make([]int64, p.n),
		pending:    make([]int, p.n),
		groupReady: make([]int64, len(p.groups)),
		groupLeft:  make([]int64, len(p.groups)),
		groupOpen:  make([]int, len(p.groups)),
		head:       make([]int64, p.n),
		lb:         make([]int64, len(p.vars)),
		groupLB:    make([]int64, len(p.groups)),
		values:     make([]int64, len(p.vars)),
	}
	for i := 0; i < p.n; i++ {
		s.pending[i] = len(p.preds[i])
	}
	for g, members := range p.groups {
		s.groupOpen[g] = len(members)
		ready := int64(0)
		for idx, member := range members {
			s.groupLeft[g] += p.size[member]
			if idx == 0 || p.release[member] < ready {
				ready = p.release[member]
			}
		}
		s.groupReady[g] = ready
	}
	return s
}

func (s *search) run() {
	s.dfs()
}

func (s *search) shouldStop() bool {
	if s.stopped {
		return true
	}
	if s.nodeLimit > 0 && s.nodes >= s.nodeLimit {
		s.stopped = true
		return true
	}
	if s.nodes%ctxCheckInterval == 0 && s.ctx.Err() != nil {
		s.stopped = true
		s.timedOut = true
		return true
	}
	return false
}

func (s *search) dfs() {
	if s.shouldStop() {
		return
	}
	s.nodes++

	if s.count == s.p.n {
		s.leaf()
		return
	}

	bound, feasible := s.bound()
	if !feasible {
		return
	}
	if s.found && bound >= s.bestValue {
		return
	}

	chosen := -1
	var chosenECT int64
	for i := 0; i < s.p.n; i++ {
		if s.scheduled[i] || s.pending[i] > 0 {
			continue
		}
		ect := s.head[i] + s.p.size[i]
		if chosen < 0 || ect < chosenECT {
			chosen = i
			chosenECT = ect
		}
	}
	if chosen < 0 {
		return
	}

	g := s.p.group[chosen]
	if g < 0 {
		prev := s.place(chosen, s.head[chosen])
		s.dfs()
		s.unplace(chosen, prev)
		return
	}

	conflict := []candidate{{interval: chosen, est: s.head[chosen]}}
	for _, member := range s.p.groups[g] {
		if member == chosen || s.scheduled[member] || s.pending[member] > 0 {
			continue
		}
		if s.head[member] < chosenECT {
			conflict = append(conflict, candidate{interval: member, est: s.head[member]})
		}
	}
	sort.Slice(conflict, func(i, j int) bool {
		if conflict[i].est != conflict[j].est {
			return conflict[i].est < conflict[j].est
		}
		return conflict[i].interval < conflict[j].interval
	})

	for _, c := range conflict {
		prev := s.place(c.interval, c.est)
		s.dfs()
		s.unplace(c.interval, prev)
		if s.stopped {
			return
		}
	}
}

// place fixes interval i at start and returns the previous ready time of its group.
func (s *search) place(i int, start int64) int64 {
	s.scheduled[i] = true
	s.start[i] = start
	s.count++
	for _, succ := range s.p.succs[i] {
		s.pending[succ]--
	}
	g := s.p.group[i]
	if g < 0 {
		return 0
	}
	prev := s.groupReady[g]
	s.groupReady[g] = start + s.p.size[i]
	s.groupLeft[g] -= s.p.size[i]
	s.groupOpen[g]--
	return prev
}

func (s *search) unplace(i int, prevReady int64) {
	s.scheduled[i] = false
	s.count--
	for _, succ := range s.p.succs[i] {
		s.pending[succ]++
	}
	g := s.p.group[i]
	if g < 0 {
		return
	}
	s.groupReady[g] = prevReady
	s.groupLeft[g] += s.p.size[i]
	s.groupOpen[g]++
}

// bound computes earliest starts for every open interval and a lower bound on
// the objective. It reports false when the node cannot be completed.
func (s *search) bound() (int64, bool) {
	p := s.p
	for _, i := range p.topo {
		if s.scheduled[i] {
			s.head[i] = s.start[i]
			continue
		}
		h := p.release[i]
		for _, pred := range p.preds[i] {
			if end := s.head[pred] + p.size[pred]; end > h {
				h = end
			}
		}
		if g := p.group[i]; g >= 0 && s.groupReady[g] > h {
			h = s.groupReady[g]
		}
		if h > p.latestStart[i] {
			return 0, false
		}
		s.head[i] = h
	}

	for v, variable := range p.vars {
		s.lb[v] = variable.Lo
	}
	for i := 0; i < p.n; i++ {
		s.lb[p.startVar[i]] = s.head[i]
		s.lb[p.endVar[i]] = s.head[i] + p.size[i]
	}

	for g, members := range p.groups {
		if s.groupOpen[g] == 0 {
			s.groupLB[g] = s.groupReady[g]
			continue
		}
		earliest := int64(-1)
		for _, member := range members {
			if s.scheduled[member] {
				continue
			}
			if earliest < 0 || s.head[member] < earliest {
				earliest = s.head[member]
			}
		}
		s.groupLB[g] = max64(s.groupReady[g], earliest) + s.groupLeft[g]
	}

	value := func(v cpmodel.VarID) int64 { return s.lb[v] }
	for _, idx := range p.eqOrder {
		eq := p.maxEqs[idx]
		target := p.vars[eq.Target]
		best := target.Lo
		for _, expr := range eq.Exprs {
			if v := expr.Eval(value); v > best {
				best = v
			}
		}
		for _, g := range p.groupCover[idx] {
			if s.groupLB[g] > best {
				best = s.groupLB[g]
			}
		}
		if best > target.Hi {
			return 0, false
		}
		s.lb[eq.Target] = best
	}

	return p.objective.Eval(value), true
}

// leaf evaluates a complete schedule exactly and records it when it improves
// the incumbent.
func (s *search) leaf() {
	p := s.p
	for v, variable := range p.vars {
		s.values[v] = variable.Lo
	}
	for i := 0; i < p.n; i++ {
		s.values[p.startVar[i]] = s.start[i]
		s.values[p.endVar[i]] = s.start[i] + p.size[i]
	}
	for i := 0; i < p.n; i++ {
		if !p.withinDomain(p.startVar[i], s.values) || !p.withinDomain(p.endVar[i], s.values) {
			return
		}
	}
	value := func(v cpmodel.VarID) int64 { return s.values[v] }
	for _, idx := range p.eqOrder {
		eq := p.maxEqs[idx]
		var result int64
		for k, expr := range eq.Exprs {
			if v := expr.Eval(value); k == 0 || v > result {
				result = v
			}
		}
		s.values[eq.Target] = result
		if !p.withinDomain(eq.Target, s.values) {
			return
		}
	}
	objective := p.objective.Eval(value)
	if s.found && objective >= s.bestValue {
		return
	}
	if s.best == nil {
		s.best = make([]int64, len(s.values))
	}
	copy(s.best, s.values)
	s.bestValue = objective
	s.found = true
}

func (p *problem) withinDomain(v cpmodel.VarID, values []int64) bool {
	variable := p.vars[v]
	return values[v] >= variable.Lo && values[v] <= variable.Hi
}
