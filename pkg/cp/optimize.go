package cp

import (
	"context"
	"fmt"
	"time"
)

// Status is the outcome of a Minimize call.
type Status int

const (
	// StatusUnknown: the search stopped on a limit before finding a solution.
	StatusUnknown Status = iota
	// StatusOptimal: a solution was found and proven optimal.
	StatusOptimal
	// StatusFeasible: a solution was found but the search stopped on a limit
	// before proving optimality.
	StatusFeasible
	// StatusInfeasible: the search proved that no solution exists.
	StatusInfeasible
)

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

// Result is the outcome of Minimize. Values holds one value per model
// variable, indexed by IntVar.ID, when Status is OPTIMAL or FEASIBLE.
type Result struct {
	Status    Status
	Values    []int
	Objective int
	Stats     *SolverStats
}

// HasSolution reports whether Values is populated.
func (r *Result) HasSolution() bool {
	return r.Status == StatusOptimal || r.Status == StatusFeasible
}

// Value returns the value of v in the solution.
// Panics if the result carries no solution.
func (r *Result) Value(v *IntVar) int {
	if !r.HasSolution() {
		panic(fmt.Sprintf("cp: Value(%s) on %s result", v.Name(), r.Status))
	}
	return r.Values[v.ID()]
}

// Option configures Minimize.
type Option func(*optConfig)

type optConfig struct {
	timeLimit time.Duration
	nodeLimit int
	workers   int
	heuristic VariableHeuristic
	monitor   *SolverMonitor
}

// WithTimeLimit bounds the wall time of the search. When reached, the best
// incumbent is returned with status FEASIBLE, or UNKNOWN if there is none.
func WithTimeLimit(d time.Duration) Option {
	return func(c *optConfig) { c.timeLimit = d }
}

// WithNodeLimit bounds the number of search nodes, summed over workers.
func WithNodeLimit(n int) Option {
	return func(c *optConfig) { c.nodeLimit = n }
}

// WithWorkers runs a portfolio of n workers, each with a different variable
// heuristic, sharing the incumbent. Values <= 1 select sequential search.
func WithWorkers(n int) Option {
	return func(c *optConfig) { c.workers = n }
}

// WithHeuristic sets the variable heuristic of the first worker.
func WithHeuristic(h VariableHeuristic) Option {
	return func(c *optConfig) { c.heuristic = h }
}

// WithMonitor collects statistics into the given monitor instead of a
// private one.
func WithMonitor(m *SolverMonitor) Option {
	return func(c *optConfig) { c.monitor = m }
}

// Minimize searches for an assignment of every model variable that
// minimizes obj.
//
// The search is a depth-first branch-and-bound: every improving solution
// becomes the incumbent and the objective domain of every later node is cut
// to values strictly below it (obj ≤ best-1). Exhausting the tree proves
// optimality, or infeasibility when no incumbent exists.
//
// Cancellation of ctx and the configured limits stop the search early
// without an error; the Status tells what was proven. An error is returned
// only for a malformed model.
func Minimize(ctx context.Context, model *Model, obj *IntVar, opts ...Option) (*Result, error) {
	cfg := optConfig{workers: 1, heuristic: HeuristicDom}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if err := model.owns(obj); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}

	if cfg.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeLimit)
		defer cancel()
	}

	mon := cfg.monitor
	if mon == nil {
		mon = NewSolverMonitor()
	}
	mon.recordModel(model, cfg.workers)

	finish := func(status Status, inc *incumbent) *Result {
		mon.FinishSearch()
		res := &Result{Status: status, Stats: mon.GetStats()}
		if inc != nil {
			res.Values, res.Objective, _ = inc.snapshot()
		}
		return res
	}

	s := newSearchSolver(model, obj, cfg.heuristic, mon)
	root := s.initialState()
	for _, d := range root.domains {
		if d.Count() == 0 {
			return finish(StatusInfeasible, nil), nil
		}
	}
	root, err := s.propagate(root)
	if err != nil {
		return finish(StatusInfeasible, nil), nil
	}

	inc := newIncumbent()
	var proved bool
	if cfg.workers == 1 {
		proved = s.branchAndBound(ctx, root, inc, newNodeBudget(cfg.nodeLimit))
	} else {
		proved = minimizePortfolio(ctx, model, obj, root, inc, cfg, mon)
	}

	_, _, have := inc.snapshot()
	switch {
	case proved && have:
		return finish(StatusOptimal, inc), nil
	case proved:
		return finish(StatusInfeasible, nil), nil
	case have:
		return finish(StatusFeasible, inc), nil
	default:
		return finish(StatusUnknown, nil), nil
	}
}

func newSearchSolver(model *Model, obj *IntVar, h VariableHeuristic, mon *SolverMonitor) *Solver {
	s := NewSolver(model)
	s.objective = obj.ID()
	s.heuristic = h
	s.monitor = mon
	return s
}

// branchAndBound explores the tree below root and reports whether it was
// exhausted. It returns false when stopped by ctx or the node budget.
func (s *Solver) branchAndBound(ctx context.Context, root *SolverState, inc *incumbent, budget *nodeBudget) bool {
	// A frame tries the values of one variable, lazily: next is the value
	// to try, -1 once the domain is exhausted. bound is the incumbent the
	// frame state was last propagated against.
	type frame struct {
		state *SolverState
		varID int
		next  int
		desc  bool
		bound int64
	}

	obj := s.objective

	// obj ≤ best-1 once an incumbent exists
	applyCutoff := func(st *SolverState) (*SolverState, bool) {
		best, ok := inc.bound()
		if !ok {
			return st, true
		}
		t := st.domains[obj].RemoveAbove(best - 1)
		if t.Count() == 0 {
			return nil, false
		}
		ns, _ := s.SetDomain(st, obj, t)
		return ns, true
	}

	leaf := func(st *SolverState) {
		if inc.offer(st.domains[obj].SingletonValue(), s.extractSolution(st)) && s.monitor != nil {
			s.monitor.RecordSolution()
		}
	}

	push := func(stack []*frame, st *SolverState, bound int64) []*frame {
		varID := s.selectVariable(st)
		if varID == -1 {
			return stack
		}
		first, desc := s.firstValue(varID, st.domains[varID])
		return append(stack, &frame{state: st, varID: varID, next: first, desc: desc, bound: bound})
	}

	bound := inc.best.Load()
	start, ok := applyCutoff(root.clone())
	if !ok {
		return true
	}
	start, err := s.propagate(start)
	if err != nil {
		return true
	}
	if s.isComplete(start) {
		leaf(start)
		return true
	}

	stack := push(make([]*frame, 0, 64), start, bound)

	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		fr := stack[len(stack)-1]

		// A better incumbent appeared since the frame state was
		// propagated: tighten it so the remaining values of the frame
		// are filtered by the new bound instead of being tried one by one.
		if b := inc.best.Load(); fr.next != -1 && b < fr.bound {
			st, ok := applyCutoff(fr.state.clone())
			if ok {
				st, err = s.propagate(st)
				ok = err == nil
			}
			if !ok {
				fr.next = -1
			} else {
				fr.state, fr.bound = st, b
				d := st.domains[fr.varID]
				if fr.desc {
					fr.next = d.Prev(fr.next)
				} else {
					fr.next = d.Next(fr.next)
				}
			}
		}

		if fr.next == -1 {
			stack = stack[:len(stack)-1]
			if s.monitor != nil {
				s.monitor.RecordBacktrack()
			}
			continue
		}
		if !budget.take() {
			return false
		}
		if s.monitor != nil {
			s.monitor.RecordNode()
			s.monitor.RecordDepth(len(stack))
		}

		value := fr.next
		fr.next = nextValue(fr.state.domains[fr.varID], value, fr.desc)

		bound := inc.best.Load()
		child := fr.state.fork()
		child, _ = s.SetDomain(child, fr.varID, NewRangeDomain(value, value))

		child, ok := applyCutoff(child)
		if !ok {
			continue
		}
		child, err := s.propagate(child)
		if err != nil {
			continue
		}
		if s.isComplete(child) {
			leaf(child)
			continue
		}
		stack = push(stack, child, bound)
	}
	return true
}

// clone copies the snapshot at the same depth.
func (st *SolverState) clone() *SolverState {
	d := make([]Domain, len(st.domains))
	copy(d, st.domains)
	return &SolverState{domains: d, depth: st.depth}
}
