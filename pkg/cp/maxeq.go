package cp

import "fmt"

// MaxEquality enforces Target = max_i(Xi + Oi) with bounds-consistent
// pruning. Offsets turn start variables into end times, so a makespan is
// MaxEquality(makespan, starts, durations).
type MaxEquality struct {
	target  *IntVar
	vars    []*IntVar
	offsets []int
}

// NewMaxEquality creates the constraint.
//
// Contract:
//   - vars: non-empty, no nil entries
//   - offsets: nil (all zero) or one per variable
//   - target: non-nil
func NewMaxEquality(target *IntVar, vars []*IntVar, offsets []int) (*MaxEquality, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("MaxEquality: vars must be non-empty")
	}
	if target == nil {
		return nil, fmt.Errorf("MaxEquality: target must not be nil")
	}
	if offsets != nil && len(offsets) != len(vars) {
		return nil, fmt.Errorf("MaxEquality: mismatched lengths (vars=%d, offsets=%d)", len(vars), len(offsets))
	}
	for i, v := range vars {
		if v == nil {
			return nil, fmt.Errorf("MaxEquality: nil variable at index %d", i)
		}
	}
	vv := make([]*IntVar, len(vars))
	copy(vv, vars)
	oo := make([]int, len(vars))
	copy(oo, offsets)
	return &MaxEquality{target: target, vars: vv, offsets: oo}, nil
}

func (c *MaxEquality) Variables() []*IntVar {
	out := make([]*IntVar, 0, len(c.vars)+1)
	out = append(out, c.vars...)
	return append(out, c.target)
}

func (c *MaxEquality) Type() string { return "MaxEquality" }

func (c *MaxEquality) String() string {
	return fmt.Sprintf("MaxEquality(%s, |vars|=%d)", c.target.Name(), len(c.vars))
}

// Propagate clamps the target to [max_i min(Xi+Oi) .. max_i max(Xi+Oi)],
// enforces Xi <= target.max - Oi, and when a single term can still reach
// target.min, raises that term's lower bound to it.
func (c *MaxEquality) Propagate(solver *Solver, state *SolverState) (*SolverState, error) {
	n := len(c.vars)
	dx := make([]Domain, n)
	a, b := -1, -1
	for i, v := range c.vars {
		d := solver.GetDomain(state, v.ID())
		if d.Count() == 0 {
			return nil, fmt.Errorf("MaxEquality: empty domain at index %d", i)
		}
		dx[i] = d
		if lo := d.Min() + c.offsets[i]; lo > a {
			a = lo
		}
		if hi := d.Max() + c.offsets[i]; hi > b {
			b = hi
		}
	}

	dt := solver.GetDomain(state, c.target.ID())
	nt := dt.RemoveBelow(a).RemoveAbove(b)
	if nt.Count() == 0 {
		return nil, fmt.Errorf("MaxEquality: target %s has no value in [%d..%d]", c.target.Name(), a, b)
	}
	state, _ = solver.SetDomain(state, c.target.ID(), nt)

	tMin, tMax := nt.Min(), nt.Max()
	support := -1
	supports := 0
	for i, v := range c.vars {
		nd := dx[i]
		if nd.Max()+c.offsets[i] > tMax {
			nd = nd.RemoveAbove(tMax - c.offsets[i])
			if nd.Count() == 0 {
				return nil, fmt.Errorf("MaxEquality: pruning %s above %d empties domain", v.Name(), tMax-c.offsets[i])
			}
			state, _ = solver.SetDomain(state, v.ID(), nd)
			dx[i] = nd
		}
		if nd.Max()+c.offsets[i] >= tMin {
			supports++
			support = i
		}
	}

	switch supports {
	case 0:
		return nil, fmt.Errorf("MaxEquality: no term reaches %d", tMin)
	case 1:
		nd := dx[support].RemoveBelow(tMin - c.offsets[support])
		if nd.Count() == 0 {
			return nil, fmt.Errorf("MaxEquality: single support %s cannot reach %d", c.vars[support].Name(), tMin)
		}
		state, _ = solver.SetDomain(state, c.vars[support].ID(), nd)
	}
	return state, nil
}
