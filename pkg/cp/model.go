// Package cp provides constraint programming infrastructure.
// This file defines the Model abstraction for declaratively building
// scheduling problems.
package cp

import (
	"errors"
	"fmt"
	"sync"
)

// ErrForeignVariable is returned when a constraint references a variable
// that does not belong to the model it is posted on.
var ErrForeignVariable = errors.New("variable does not belong to model")

// Model represents a constraint satisfaction problem declaratively:
// decision variables with finite domains plus the constraints posted on them.
//
// Models are constructed incrementally and are read-only during solving,
// which lets parallel search workers share one Model.
//
// Thread safety: Models are safe for concurrent reads during solving,
// but must be constructed sequentially.
type Model struct {
	variables   []*IntVar
	constraints []Constraint

	// degree counts constraint occurrences per variable, used by the
	// dom/deg heuristic
	degree []int

	mu sync.RWMutex
}

// Constraint is a propagator posted on a model.
//
// Propagate reads current domains through solver.GetDomain, narrows them with
// solver.SetDomain and returns the resulting state. Returning an error means
// the current state is inconsistent and the search must backtrack.
type Constraint interface {
	// Variables returns the variables involved in this constraint.
	Variables() []*IntVar

	// Type returns a string identifying the constraint type.
	Type() string

	// String returns a human-readable representation.
	String() string

	// Propagate narrows domains until the constraint's own fixed point.
	Propagate(solver *Solver, state *SolverState) (*SolverState, error)
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{}
}

func (m *Model) newVar(domain Domain, name string, boolean bool) *IntVar {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := &IntVar{id: len(m.variables), name: name, domain: domain, boolean: boolean}
	m.variables = append(m.variables, v)
	m.degree = append(m.degree, 0)
	return v
}

// NewVariable adds a variable with an arbitrary initial domain.
func (m *Model) NewVariable(domain Domain, name string) *IntVar {
	return m.newVar(domain, name, false)
}

// IntVar adds an integer variable over [lo, hi]. An empty range produces a
// variable with an empty domain, which makes the model infeasible.
func (m *Model) IntVar(lo, hi int, name string) *IntVar {
	return m.newVar(NewRangeDomain(lo, hi), name, false)
}

// BoolVar adds a 0/1 variable.
func (m *Model) BoolVar(name string) *IntVar {
	return m.newVar(NewRangeDomain(0, 1), name, true)
}

// Fix restricts the initial domain of v to the single value. Fixing to a
// value outside the current domain leaves v with an empty domain.
func (m *Model) Fix(v *IntVar, value int) error {
	if err := m.owns(v); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v.domain = v.domain.Intersect(NewRangeDomain(value, value))
	return nil
}

func (m *Model) owns(v *IntVar) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v == nil || v.id < 0 || v.id >= len(m.variables) || m.variables[v.id] != v {
		return ErrForeignVariable
	}
	return nil
}

// AddConstraint posts a constraint after checking that every variable it
// touches belongs to this model.
func (m *Model) AddConstraint(c Constraint) error {
	for _, v := range c.Variables() {
		if err := m.owns(v); err != nil {
			return fmt.Errorf("%s: %w", c.Type(), err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = append(m.constraints, c)
	for _, v := range c.Variables() {
		m.degree[v.id]++
	}
	return nil
}

// ExactlyOne posts sum(bools) == 1.
func (m *Model) ExactlyOne(bools []*IntVar) error {
	c, err := NewExactlyOne(bools)
	if err != nil {
		return err
	}
	return m.AddConstraint(c)
}

// NoOverlap posts pairwise disjointness of the present intervals.
func (m *Model) NoOverlap(intervals []Interval) error {
	c, err := NewNoOverlap(intervals)
	if err != nil {
		return err
	}
	return m.AddConstraint(c)
}

// MaxEquality posts target == max_i(vars[i] + offsets[i]).
func (m *Model) MaxEquality(target *IntVar, vars []*IntVar, offsets []int) error {
	c, err := NewMaxEquality(target, vars, offsets)
	if err != nil {
		return err
	}
	return m.AddConstraint(c)
}

// Variables returns the model variables in creation order.
func (m *Model) Variables() []*IntVar {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*IntVar, len(m.variables))
	copy(out, m.variables)
	return out
}

// VariableCount returns the number of variables.
func (m *Model) VariableCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.variables)
}

// Constraints returns the posted constraints.
func (m *Model) Constraints() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Constraint, len(m.constraints))
	copy(out, m.constraints)
	return out
}

// ConstraintCount returns the number of posted constraints.
func (m *Model) ConstraintCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.constraints)
}

// String returns a human-readable representation of the model.
func (m *Model) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("Model{variables: %d, constraints: %d}", len(m.variables), len(m.constraints))
}

// Validate checks that the model is well-formed. Empty domains are not an
// error here: they make the model infeasible, which Minimize reports as a
// status.
func (m *Model) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.variables {
		if v.domain == nil {
			return fmt.Errorf("variable %s has nil domain", v.name)
		}
	}
	for _, c := range m.constraints {
		for _, v := range c.Variables() {
			if v.id >= len(m.variables) || m.variables[v.id] != v {
				return fmt.Errorf("constraint %s references unknown variable %d", c.Type(), v.id)
			}
		}
	}
	return nil
}
