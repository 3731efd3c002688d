package schedule

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Verify checks the plan against the problem it claims to solve:
//   - every task is assigned exactly once and nothing else is assigned
//   - the worker and the machine exist and are capable of the task type
//   - start >= earliest_start, end = start + duration, end <= deadline
//   - no two assignments overlap on a worker or on a machine
//   - no assignment overlaps a busy window of its worker or machine
//   - the makespan is the largest end (0 for an empty plan)
//
// All violations are returned together, wrapped in ErrInvalidPlan.
func (p *Plan) Verify(prob Problem) error {
	var err error

	tasks := make(map[ID]Task, len(prob.Tasks))
	for _, t := range prob.Tasks {
		tasks[t.ID] = t
	}
	workers := indexResources(prob.Workers)
	machines := indexResources(prob.Machines)

	seen := make(map[ID]bool, len(p.Assignments))
	byWorker := make(map[ID][]Assignment)
	byMachine := make(map[ID][]Assignment)
	makespan := 0

	for _, a := range p.Assignments {
		makespan = max(makespan, a.End)
		t, ok := tasks[a.TaskID]
		if !ok {
			err = multierr.Append(err, fmt.Errorf("task %q: not in problem", a.TaskID))
			continue
		}
		if seen[a.TaskID] {
			err = multierr.Append(err, fmt.Errorf("task %q: assigned more than once", a.TaskID))
			continue
		}
		seen[a.TaskID] = true

		if a.Start < t.EarliestStart {
			err = multierr.Append(err, fmt.Errorf("task %q: starts at %d before earliest_start %d", t.ID, a.Start, t.EarliestStart))
		}
		if a.End != a.Start+t.Duration {
			err = multierr.Append(err, fmt.Errorf("task %q: spans [%d,%d) but lasts %d", t.ID, a.Start, a.End, t.Duration))
		}
		if a.End > t.Deadline {
			err = multierr.Append(err, fmt.Errorf("task %q: ends at %d after deadline %d", t.ID, a.End, t.Deadline))
		}

		err = multierr.Append(err, checkResource(KindWorker, workers, a.WorkerID, a, t))
		err = multierr.Append(err, checkResource(KindMachine, machines, a.MachineID, a, t))
		byWorker[a.WorkerID] = append(byWorker[a.WorkerID], a)
		byMachine[a.MachineID] = append(byMachine[a.MachineID], a)
	}

	for _, t := range prob.Tasks {
		if !seen[t.ID] {
			err = multierr.Append(err, fmt.Errorf("task %q: not assigned", t.ID))
		}
	}
	err = multierr.Append(err, checkOverlaps(KindWorker, byWorker))
	err = multierr.Append(err, checkOverlaps(KindMachine, byMachine))

	if p.Makespan != makespan {
		err = multierr.Append(err, fmt.Errorf("makespan %d differs from last end %d", p.Makespan, makespan))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	return nil
}

func indexResources(rs []Resource) map[ID]Resource {
	out := make(map[ID]Resource, len(rs))
	for _, r := range rs {
		out[r.ID] = r
	}
	return out
}

func checkResource(kind ResourceKind, rs map[ID]Resource, id ID, a Assignment, t Task) error {
	r, ok := rs[id]
	if !ok {
		return fmt.Errorf("task %q: unknown %s %q", t.ID, kind, id)
	}
	if !r.CanRun(t) {
		return fmt.Errorf("task %q: %s %q lacks capability %q", t.ID, kind, id, t.Type)
	}
	var err error
	for _, w := range r.BusyWindows {
		if a.Start < w.End && w.Start < a.End {
			err = multierr.Append(err, fmt.Errorf("task %q: [%d,%d) overlaps busy window %s of %s %q", t.ID, a.Start, a.End, w, kind, id))
		}
	}
	return err
}

func checkOverlaps(kind ResourceKind, by map[ID][]Assignment) error {
	var err error
	ids := make([]ID, 0, len(by))
	for id := range by {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		as := append([]Assignment(nil), by[id]...)
		sort.Slice(as, func(i, j int) bool { return as[i].Start < as[j].Start })
		// last is the earlier assignment reaching furthest right
		last := 0
		for i := 1; i < len(as); i++ {
			if as[i].Start < as[last].End {
				err = multierr.Append(err, fmt.Errorf("%s %q: tasks %q and %q overlap", kind, id, as[last].TaskID, as[i].TaskID))
			}
			if as[i].End > as[last].End {
				last = i
			}
		}
	}
	return err
}
