package cp

import "fmt"

// ExactlyOne enforces that exactly one of a set of 0/1 variables is 1.
//
// Propagation:
//   - two or more variables fixed to 1 → failure
//   - no variable can still be 1 → failure
//   - one variable fixed to 1 → every other is fixed to 0
//   - only one variable can still be 1 → it is fixed to 1
type ExactlyOne struct {
	vars []*IntVar
}

// NewExactlyOne creates the constraint. Every variable must be boolean.
// An empty list is accepted and is always infeasible.
func NewExactlyOne(bools []*IntVar) (*ExactlyOne, error) {
	for i, b := range bools {
		if b == nil {
			return nil, fmt.Errorf("ExactlyOne: nil variable at index %d", i)
		}
		if d := b.Domain(); d == nil || d.Max() > 1 {
			return nil, fmt.Errorf("ExactlyOne: variable %s is not boolean", b.Name())
		}
	}
	vv := make([]*IntVar, len(bools))
	copy(vv, bools)
	return &ExactlyOne{vars: vv}, nil
}

func (c *ExactlyOne) Variables() []*IntVar {
	out := make([]*IntVar, len(c.vars))
	copy(out, c.vars)
	return out
}

func (c *ExactlyOne) Type() string { return "ExactlyOne" }

func (c *ExactlyOne) String() string {
	return fmt.Sprintf("ExactlyOne(|vars|=%d)", len(c.vars))
}

// Propagate implements the counting rules documented on ExactlyOne.
func (c *ExactlyOne) Propagate(solver *Solver, state *SolverState) (*SolverState, error) {
	ones := 0
	candidates := 0
	last := -1
	for i, v := range c.vars {
		d := solver.GetDomain(state, v.ID())
		if !d.Has(1) {
			continue
		}
		candidates++
		last = i
		if d.IsSingleton() {
			ones++
		}
	}

	switch {
	case ones > 1:
		return nil, fmt.Errorf("ExactlyOne: %d variables fixed to 1", ones)
	case candidates == 0:
		return nil, fmt.Errorf("ExactlyOne: no variable can be 1")
	case ones == 1:
		for _, v := range c.vars {
			d := solver.GetDomain(state, v.ID())
			if d.Has(1) && !d.IsSingleton() {
				state, _ = solver.SetDomain(state, v.ID(), d.Remove(1))
			}
		}
	case candidates == 1:
		v := c.vars[last]
		d := solver.GetDomain(state, v.ID())
		state, _ = solver.SetDomain(state, v.ID(), d.Remove(0))
	}
	return state, nil
}
