package cp

import (
	"context"
	"errors"
	"testing"
)

// rootPropagate runs propagation on the initial domains of the model.
func rootPropagate(t *testing.T, model *Model) (*Solver, *SolverState, error) {
	t.Helper()
	s := NewSolver(model)
	st, err := s.propagate(s.initialState())
	return s, st, err
}

func TestExactlyOne_FixesLastCandidate(t *testing.T) {
	model := NewModel()
	a, b, c := model.BoolVar("a"), model.BoolVar("b"), model.BoolVar("c")
	if err := model.Fix(a, 0); err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if err := model.Fix(c, 0); err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if err := model.ExactlyOne([]*IntVar{a, b, c}); err != nil {
		t.Fatalf("ExactlyOne: %v", err)
	}

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if got := s.GetDomain(st, b.ID()).String(); got != "{1}" {
		t.Fatalf("expected b={1}, got %s", got)
	}
}

func TestExactlyOne_ClearsOthers(t *testing.T) {
	model := NewModel()
	a, b, c := model.BoolVar("a"), model.BoolVar("b"), model.BoolVar("c")
	_ = model.Fix(b, 1)
	_ = model.ExactlyOne([]*IntVar{a, b, c})

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	for _, v := range []*IntVar{a, c} {
		if got := s.GetDomain(st, v.ID()).String(); got != "{0}" {
			t.Fatalf("expected %s={0}, got %s", v.Name(), got)
		}
	}
}

func TestExactlyOne_Failures(t *testing.T) {
	model := NewModel()
	a, b := model.BoolVar("a"), model.BoolVar("b")
	_ = model.Fix(a, 1)
	_ = model.Fix(b, 1)
	_ = model.ExactlyOne([]*IntVar{a, b})
	if _, _, err := rootPropagate(t, model); err == nil {
		t.Fatalf("expected failure with two variables fixed to 1")
	}

	model = NewModel()
	a, b = model.BoolVar("a"), model.BoolVar("b")
	_ = model.Fix(a, 0)
	_ = model.Fix(b, 0)
	_ = model.ExactlyOne([]*IntVar{a, b})
	if _, _, err := rootPropagate(t, model); err == nil {
		t.Fatalf("expected failure with every variable fixed to 0")
	}

	model = NewModel()
	_ = model.ExactlyOne(nil)
	if _, _, err := rootPropagate(t, model); err == nil {
		t.Fatalf("expected failure for an empty ExactlyOne")
	}
}

func TestExactlyOne_RejectsNonBoolean(t *testing.T) {
	model := NewModel()
	x := model.IntVar(0, 5, "x")
	if err := model.ExactlyOne([]*IntVar{x}); err == nil {
		t.Fatalf("expected error for an integer variable")
	}
}

func TestNoOverlap_PresentIntervalsPruneStarts(t *testing.T) {
	model := NewModel()
	a := model.IntVar(0, 0, "a")
	b := model.IntVar(1, 6, "b")
	c := model.IntVar(0, 4, "c")
	d := model.IntVar(4, 4, "d")
	err := model.NoOverlap([]Interval{
		{Start: a, Duration: 2},
		{Start: b, Duration: 2},
	})
	if err != nil {
		t.Fatalf("NoOverlap: %v", err)
	}
	_ = model.NoOverlap([]Interval{
		{Start: c, Duration: 2},
		{Start: d, Duration: 3},
	})

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	// a occupies [0,2): b cannot start before 2
	if got := s.GetDomain(st, b.ID()).String(); got != "{2..6}" {
		t.Fatalf("expected b={2..6}, got %s", got)
	}
	// d occupies [4,7): c must end by 4
	if got := s.GetDomain(st, c.ID()).String(); got != "{0..2}" {
		t.Fatalf("expected c={0..2}, got %s", got)
	}
}

func TestNoOverlap_InnerValuesKeptOnBounds(t *testing.T) {
	model := NewModel()
	a := model.IntVar(2, 2, "a")
	b := model.IntVar(0, 4, "b")
	_ = model.NoOverlap([]Interval{
		{Start: a, Duration: 2},
		{Start: b, Duration: 2},
	})

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	// both bounds of b fit around [2,4); inner values are left to search
	if got := s.GetDomain(st, b.ID()).String(); got != "{0..4}" {
		t.Fatalf("expected b={0..4}, got %s", got)
	}
}

func TestNoOverlap_SkipsHolesAfterPush(t *testing.T) {
	model := NewModel()
	a := model.IntVar(0, 0, "a")
	b := model.NewVariable(NewDomainFromValues(0, 1, 3, 5, 6), "b")
	_ = model.NoOverlap([]Interval{
		{Start: a, Duration: 2},
		{Start: b, Duration: 2},
	})

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	// pushed to 2, which is a hole: next member is 3
	if got := s.GetDomain(st, b.ID()).String(); got != "{3,5,6}" {
		t.Fatalf("expected b={3,5,6}, got %s", got)
	}
}

func TestNoOverlap_Overload(t *testing.T) {
	// three jobs of length 2 that must all run inside [0, 5)
	model := NewModel()
	var ivs []Interval
	for _, name := range []string{"a", "b", "c"} {
		ivs = append(ivs, Interval{Start: model.IntVar(0, 3, name), Duration: 2})
	}
	_ = model.NoOverlap(ivs)
	if _, _, err := rootPropagate(t, model); err == nil {
		t.Fatalf("expected overload failure")
	}

	// with one more time unit they fit
	model = NewModel()
	ivs = nil
	for _, name := range []string{"a", "b", "c"} {
		ivs = append(ivs, Interval{Start: model.IntVar(0, 4, name), Duration: 2})
	}
	_ = model.NoOverlap(ivs)
	if _, _, err := rootPropagate(t, model); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestNoOverlap_WideHorizon(t *testing.T) {
	const horizon = 1_000_000_000
	model := NewModel()
	a := model.IntVar(0, 0, "a")
	b := model.IntVar(0, horizon, "b")
	lit := model.BoolVar("lit")
	c := model.IntVar(horizon-1, horizon, "c")
	_ = model.NoOverlap([]Interval{
		{Start: a, Duration: 5},
		{Start: b, Duration: 5},
		{Start: c, Duration: 3, Presence: lit},
	})

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if got := s.GetDomain(st, b.ID()).Min(); got != 5 {
		t.Fatalf("expected b to start at 5 or later, got %d", got)
	}
	if got := s.GetDomain(st, lit.ID()).String(); got != "{0..1}" {
		t.Fatalf("optional interval should stay undecided, got %s", got)
	}
}

func TestNoOverlap_OptionalIntervalBecomesAbsent(t *testing.T) {
	model := NewModel()
	busy := model.IntVar(0, 0, "busy")
	start := model.IntVar(1, 3, "start")
	lit := model.BoolVar("lit")
	_ = model.NoOverlap([]Interval{
		{Start: busy, Duration: 5},
		{Start: start, Duration: 2, Presence: lit},
	})

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if got := s.GetDomain(st, lit.ID()).String(); got != "{0}" {
		t.Fatalf("expected lit={0}, got %s", got)
	}
	// the start is shared with other resources and must not be pruned here
	if got := s.GetDomain(st, start.ID()).String(); got != "{1..3}" {
		t.Fatalf("optional interval pruned its start: %s", got)
	}
}

func TestNoOverlap_AbsentIntervalIgnored(t *testing.T) {
	model := NewModel()
	a := model.IntVar(0, 0, "a")
	b := model.IntVar(0, 0, "b")
	lit := model.BoolVar("lit")
	_ = model.Fix(lit, 0)
	_ = model.NoOverlap([]Interval{
		{Start: a, Duration: 3},
		{Start: b, Duration: 3, Presence: lit},
	})
	if _, _, err := rootPropagate(t, model); err != nil {
		t.Fatalf("absent interval caused a conflict: %v", err)
	}
}

func TestNoOverlap_CompulsoryConflict(t *testing.T) {
	model := NewModel()
	a := model.IntVar(0, 1, "a")
	b := model.IntVar(1, 1, "b")
	_ = model.NoOverlap([]Interval{
		{Start: a, Duration: 3},
		{Start: b, Duration: 3},
	})
	if _, _, err := rootPropagate(t, model); err == nil {
		t.Fatalf("expected overlap failure")
	}
}

func TestNoOverlap_ConstructorValidation(t *testing.T) {
	model := NewModel()
	v := model.IntVar(0, 5, "v")
	if _, err := NewNoOverlap(nil); err == nil {
		t.Fatalf("expected error for no intervals")
	}
	if _, err := NewNoOverlap([]Interval{{Start: v, Duration: 0}}); err == nil {
		t.Fatalf("expected error for zero duration")
	}
	if _, err := NewNoOverlap([]Interval{{Start: v, Duration: 1, Presence: v}}); err == nil {
		t.Fatalf("expected error for non-boolean presence")
	}
}

func TestMaxEquality_Bounds(t *testing.T) {
	model := NewModel()
	x := model.IntVar(0, 4, "x")
	y := model.IntVar(3, 6, "y")
	m := model.IntVar(0, 8, "m")
	if err := model.MaxEquality(m, []*IntVar{x, y}, []int{2, 1}); err != nil {
		t.Fatalf("MaxEquality: %v", err)
	}

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	// x+2 in [2,6], y+1 in [4,7] → m in [4,7]
	if got := s.GetDomain(st, m.ID()).String(); got != "{4..7}" {
		t.Fatalf("expected m={4..7}, got %s", got)
	}
}

func TestMaxEquality_UpperBoundPrunesTerms(t *testing.T) {
	model := NewModel()
	x := model.IntVar(0, 9, "x")
	y := model.IntVar(0, 9, "y")
	m := model.IntVar(0, 5, "m")
	_ = model.MaxEquality(m, []*IntVar{x, y}, []int{3, 0})

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if got := s.GetDomain(st, x.ID()).String(); got != "{0..2}" {
		t.Fatalf("expected x={0..2}, got %s", got)
	}
	if got := s.GetDomain(st, y.ID()).String(); got != "{0..5}" {
		t.Fatalf("expected y={0..5}, got %s", got)
	}
}

func TestMaxEquality_SingleSupport(t *testing.T) {
	model := NewModel()
	x := model.IntVar(0, 2, "x")
	y := model.IntVar(0, 9, "y")
	m := model.IntVar(6, 9, "m")
	_ = model.MaxEquality(m, []*IntVar{x, y}, nil)

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	// only y can reach 6
	if got := s.GetDomain(st, y.ID()).String(); got != "{6..9}" {
		t.Fatalf("expected y={6..9}, got %s", got)
	}
}

func TestModel_ForeignVariable(t *testing.T) {
	a := NewModel()
	b := NewModel()
	v := a.BoolVar("v")
	if err := b.ExactlyOne([]*IntVar{v}); err == nil {
		t.Fatalf("expected error for a variable of another model")
	}
	if err := b.Fix(v, 1); err == nil {
		t.Fatalf("expected Fix to reject a foreign variable")
	}
}

// creep enforces x >= floor but removes only one value per call, so it
// needs one propagation round per removed value.
type creep struct {
	x     *IntVar
	floor int
}

func (c *creep) Variables() []*IntVar { return []*IntVar{c.x} }
func (c *creep) Type() string         { return "creep" }
func (c *creep) String() string       { return "creep" }

func (c *creep) Propagate(solver *Solver, state *SolverState) (*SolverState, error) {
	d := solver.GetDomain(state, c.x.ID())
	if d.Count() == 0 {
		return nil, errors.New("creep: empty domain")
	}
	if d.Min() >= c.floor {
		return state, nil
	}
	nd := d.Remove(d.Min())
	if nd.Count() == 0 {
		return nil, errors.New("creep: no value above the floor")
	}
	state, _ = solver.SetDomain(state, c.x.ID(), nd)
	return state, nil
}

func TestPropagate_SlowConvergenceStopsAtRoundCap(t *testing.T) {
	model := NewModel()
	x := model.IntVar(0, 1_000_000, "x")
	if err := model.AddConstraint(&creep{x: x, floor: 3 * maxPropagationRounds}); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}

	s, st, err := rootPropagate(t, model)
	if err != nil {
		t.Fatalf("capped propagation must not fail: %v", err)
	}
	if got := s.GetDomain(st, x.ID()).Min(); got != maxPropagationRounds {
		t.Fatalf("expected min %d after the cap, got %d", maxPropagationRounds, got)
	}
}

func TestPropagate_CompleteStateRunsToFixedPoint(t *testing.T) {
	model := NewModel()
	x := model.IntVar(0, 3*maxPropagationRounds, "x")
	_ = model.AddConstraint(&creep{x: x, floor: 3 * maxPropagationRounds})

	res, err := Minimize(context.Background(), model, x)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	// the only value that satisfies the floor is the upper bound
	if res.Status != StatusOptimal || res.Objective != 3*maxPropagationRounds {
		t.Fatalf("expected OPTIMAL %d, got %s %d", 3*maxPropagationRounds, res.Status, res.Objective)
	}
}
