// Package cp provides constraint solving infrastructure.
// This file implements the solver core: per-node domain snapshots,
// fixed-point propagation and variable selection.
//
// # State management
//
// The solver separates the immutable problem definition from the mutable
// solving state:
//
//	Model (read-only during solving):
//	  - Variables with initial domains
//	  - Constraints that reference variables
//	  - Shared by all parallel workers
//
//	SolverState (private to one search node):
//	  - One Domain reference per variable
//	  - Forked when the search branches: the fork copies the references,
//	    never the domains, because domains are immutable
//	  - Written in place by propagation while the node is being refined
//
// Backtracking discards the child state; the parent snapshot is untouched.
// Parallel workers share the Model and own their state stacks, so search is
// lock-free apart from the shared incumbent.
package cp

import (
	"fmt"
)

// VariableHeuristic selects the next variable to branch on.
type VariableHeuristic int

const (
	// HeuristicDom picks the smallest domain first.
	HeuristicDom VariableHeuristic = iota
	// HeuristicDomDeg picks the smallest domain/degree ratio.
	HeuristicDomDeg
	// HeuristicEarliest picks the variable with the lowest minimum value,
	// smallest domain on ties. On scheduling models this fixes assignments
	// first and then starts in time order.
	HeuristicEarliest
	// HeuristicLex picks variables in creation order.
	HeuristicLex
)

func (h VariableHeuristic) String() string {
	switch h {
	case HeuristicDom:
		return "dom"
	case HeuristicDomDeg:
		return "dom/deg"
	case HeuristicEarliest:
		return "earliest"
	case HeuristicLex:
		return "lex"
	default:
		return fmt.Sprintf("heuristic(%d)", int(h))
	}
}

// maxPropagationRounds caps the fixed-point loop on incomplete states.
// Bounds reasoning over wide domains can advance a bound by a few values
// per round; past the cap the node is searched with the domains reached so
// far. Complete states always run to the fixed point, so no assignment is
// accepted unchecked.
const maxPropagationRounds = 10000

// Solver performs propagation and variable selection over a Model.
// A Solver is used by exactly one search worker; create one per goroutine.
type Solver struct {
	model     *Model
	vars      []*IntVar
	cons      []Constraint
	degree    []int
	heuristic VariableHeuristic
	monitor   *SolverMonitor

	// objective is excluded from branching until every other variable is
	// bound; -1 when solving without an objective
	objective int
}

// SolverState holds the current domain of every model variable at one
// search node.
type SolverState struct {
	domains []Domain
	depth   int
	changes int
}

// NewSolver creates a solver for the model using the dom heuristic.
func NewSolver(model *Model) *Solver {
	model.mu.RLock()
	defer model.mu.RUnlock()
	vars := make([]*IntVar, len(model.variables))
	copy(vars, model.variables)
	cons := make([]Constraint, len(model.constraints))
	copy(cons, model.constraints)
	degree := make([]int, len(model.degree))
	copy(degree, model.degree)
	return &Solver{
		model:     model,
		vars:      vars,
		cons:      cons,
		degree:    degree,
		heuristic: HeuristicDom,
		objective: -1,
	}
}

// SetHeuristic changes the variable selection heuristic.
func (s *Solver) SetHeuristic(h VariableHeuristic) {
	s.heuristic = h
}

// SetMonitor attaches a monitor that records search statistics.
func (s *Solver) SetMonitor(monitor *SolverMonitor) {
	s.monitor = monitor
}

// Model returns the model being solved.
func (s *Solver) Model() *Model {
	return s.model
}

// initialState builds the root snapshot from the initial domains.
func (s *Solver) initialState() *SolverState {
	st := &SolverState{domains: make([]Domain, len(s.vars))}
	for i, v := range s.vars {
		st.domains[i] = v.domain
	}
	return st
}

// fork returns a child snapshot one level deeper.
func (st *SolverState) fork() *SolverState {
	d := make([]Domain, len(st.domains))
	copy(d, st.domains)
	return &SolverState{domains: d, depth: st.depth + 1}
}

// Depth returns the search depth of the node owning this state.
func (st *SolverState) Depth() int {
	return st.depth
}

// GetDomain returns the current domain of a variable.
func (s *Solver) GetDomain(state *SolverState, varID int) Domain {
	if state == nil || varID < 0 || varID >= len(state.domains) {
		return nil
	}
	return state.domains[varID]
}

// SetDomain narrows the domain of a variable in the given state and reports
// whether anything changed. The returned state is the one to continue with.
func (s *Solver) SetDomain(state *SolverState, varID int, domain Domain) (*SolverState, bool) {
	if state.domains[varID].Equal(domain) {
		return state, false
	}
	state.domains[varID] = domain
	state.changes++
	return state, true
}

// propagate runs every constraint until no domain changes (fixed point).
// An error means the state is inconsistent.
func (s *Solver) propagate(state *SolverState) (*SolverState, error) {
	if len(s.cons) == 0 {
		return state, nil
	}
	if s.monitor != nil {
		defer s.monitor.EndPropagation(s.monitor.StartPropagation())
	}

	current := state
	for round := 1; ; round++ {
		before := current.changes
		for _, c := range s.cons {
			next, err := c.Propagate(s, current)
			if err != nil {
				return nil, err
			}
			current = next
		}
		if current.changes == before {
			return current, nil
		}
		if round >= maxPropagationRounds && !s.isComplete(current) {
			return current, nil
		}
	}
}

// isComplete returns true if all variables are bound.
func (s *Solver) isComplete(state *SolverState) bool {
	for _, d := range state.domains {
		if !d.IsSingleton() {
			return false
		}
	}
	return true
}

// extractSolution returns the value of every variable of a complete state.
func (s *Solver) extractSolution(state *SolverState) []int {
	solution := make([]int, len(state.domains))
	for i, d := range state.domains {
		solution[i] = d.SingletonValue()
	}
	return solution
}

// selectVariable chooses the next variable to branch on.
// Returns -1 if every variable is bound.
func (s *Solver) selectVariable(state *SolverState) int {
	best := -1
	bestScore := 0.0
	for i, d := range state.domains {
		if i == s.objective || d.IsSingleton() {
			continue
		}
		score := s.score(i, d)
		if best == -1 || score < bestScore {
			best = i
			bestScore = score
		}
	}
	if best == -1 && s.objective >= 0 && !state.domains[s.objective].IsSingleton() {
		best = s.objective
	}
	return best
}

// firstValue returns the first value to try for a variable and the
// direction of the remaining ones. Booleans try 1 before 0, integers
// ascend. Values are produced one at a time with nextValue, so wide
// domains are never enumerated up front.
func (s *Solver) firstValue(varID int, d Domain) (value int, descending bool) {
	if s.vars[varID].boolean {
		return d.Max(), true
	}
	return d.Min(), false
}

// nextValue returns the value following prev in d, or -1.
func nextValue(d Domain, prev int, descending bool) int {
	if descending {
		if prev <= 0 {
			return -1
		}
		return d.Prev(prev - 1)
	}
	return d.Next(prev + 1)
}

// score ranks a candidate variable; lower is selected first.
func (s *Solver) score(varID int, d Domain) float64 {
	switch s.heuristic {
	case HeuristicDomDeg:
		return float64(d.Count()) / float64(1+s.degree[varID])
	case HeuristicEarliest:
		c := float64(d.Count())
		return float64(d.Min()) + c/(c+1)
	case HeuristicLex:
		return float64(varID)
	default:
		return float64(d.Count())
	}
}
