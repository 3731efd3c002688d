package schedule

import (
	"fmt"

	"github.com/gitrdm/gokanplan/pkg/cp"
)

// Formulation is the constraint model of one busy-window-free problem and
// the handles needed to read a solution back.
type Formulation struct {
	Model   *cp.Model
	Problem Problem
	Horizon int

	// Start[i] is the start of Problem.Tasks[i].
	Start []*cp.IntVar
	// WorkerLit[i][w] is 1 iff task i runs on Problem.Workers[w].
	WorkerLit [][]*cp.IntVar
	// MachineLit[i][m] is 1 iff task i runs on Problem.Machines[m].
	MachineLit [][]*cp.IntVar

	Makespan *cp.IntVar
}

// Build compiles a problem into a cp.Model:
//   - start_i in [earliest_start, deadline - duration]
//   - one 0/1 literal per (task, worker) and (task, machine), fixed to 0
//     for incompatible pairs
//   - ExactlyOne over the worker literals and over the machine literals of
//     each task
//   - per resource, NoOverlap over the optional intervals of its
//     compatible tasks; resources without compatible tasks get none
//   - makespan in [0, horizon] equal to max(start_i + duration_i)
//
// A task whose window cannot hold its duration yields an InfeasibleError
// with CauseStructural before anything is solved. Problems that still carry
// busy windows are rejected; reduce them first.
func Build(p Problem) (*Formulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.HasBusyWindows() {
		return nil, fmt.Errorf("%w: busy windows must be reduced before building", ErrInvalidProblem)
	}

	m := cp.NewModel()
	f := &Formulation{
		Model:      m,
		Problem:    p,
		Horizon:    p.Horizon(),
		Start:      make([]*cp.IntVar, len(p.Tasks)),
		WorkerLit:  make([][]*cp.IntVar, len(p.Tasks)),
		MachineLit: make([][]*cp.IntVar, len(p.Tasks)),
	}

	for i, t := range p.Tasks {
		if t.LatestStart() < t.EarliestStart {
			return nil, &InfeasibleError{Cause: CauseStructural, TaskID: t.ID}
		}
		f.Start[i] = m.IntVar(t.EarliestStart, t.LatestStart(), fmt.Sprintf("start[%s]", t.ID))
	}

	var err error
	for i, t := range p.Tasks {
		if f.WorkerLit[i], err = assignmentLiterals(m, t, p.Workers, "w"); err != nil {
			return nil, err
		}
		if f.MachineLit[i], err = assignmentLiterals(m, t, p.Machines, "m"); err != nil {
			return nil, err
		}
	}

	for w := range p.Workers {
		if err := f.noOverlap(func(i int) *cp.IntVar { return f.WorkerLit[i][w] }, p.Workers[w]); err != nil {
			return nil, err
		}
	}
	for mi := range p.Machines {
		if err := f.noOverlap(func(i int) *cp.IntVar { return f.MachineLit[i][mi] }, p.Machines[mi]); err != nil {
			return nil, err
		}
	}

	f.Makespan = m.IntVar(0, f.Horizon, "makespan")
	if len(p.Tasks) == 0 {
		return f, nil
	}
	durations := make([]int, len(p.Tasks))
	for i, t := range p.Tasks {
		durations[i] = t.Duration
	}
	if err := m.MaxEquality(f.Makespan, f.Start, durations); err != nil {
		return nil, fmt.Errorf("build makespan: %w", err)
	}
	return f, nil
}

// assignmentLiterals creates one literal per resource and posts
// ExactlyOne over them.
func assignmentLiterals(m *cp.Model, t Task, rs []Resource, code string) ([]*cp.IntVar, error) {
	lits := make([]*cp.IntVar, len(rs))
	for j, r := range rs {
		lits[j] = m.BoolVar(fmt.Sprintf("%s[%s,%s]", code, t.ID, r.ID))
		if !r.CanRun(t) {
			if err := m.Fix(lits[j], 0); err != nil {
				return nil, fmt.Errorf("build task %q: %w", t.ID, err)
			}
		}
	}
	if err := m.ExactlyOne(lits); err != nil {
		return nil, fmt.Errorf("build task %q: %w", t.ID, err)
	}
	return lits, nil
}

func (f *Formulation) noOverlap(lit func(task int) *cp.IntVar, r Resource) error {
	var intervals []cp.Interval
	for i, t := range f.Problem.Tasks {
		if r.CanRun(t) {
			intervals = append(intervals, cp.Interval{Start: f.Start[i], Duration: t.Duration, Presence: lit(i)})
		}
	}
	if len(intervals) == 0 {
		return nil
	}
	if err := f.Model.NoOverlap(intervals); err != nil {
		return fmt.Errorf("build resource %q: %w", r.ID, err)
	}
	return nil
}
