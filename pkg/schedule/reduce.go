package schedule

import "fmt"

// Reduction is a busy-window-free Problem equivalent to the original one,
// plus the ids of the dummy tasks introduced to encode the windows.
type Reduction struct {
	Problem   Problem
	Synthetic map[ID]struct{}
}

// IsSynthetic reports whether the task was introduced by Reduce.
func (r *Reduction) IsSynthetic(id ID) bool {
	_, ok := r.Synthetic[id]
	return ok
}

// Reduce replaces every busy window with synthetic demand.
//
// For window k of real resource R (workers first, then machines):
//   - a fresh capability tag τ is added to a copy of R's types
//   - a phantom counterpart resource (a machine for a worker, a worker for
//     a machine) is appended with τ as its only capability
//   - a dummy task of type τ is appended with window [start, end] and
//     duration end - start, so it is pinned to the busy interval
//
// The only resources able to run the dummy task are R and its phantom, so a
// feasible plan of the reduction occupies R exactly during the window.
//
// Windows of one resource are not merged. Two overlapping windows pin two
// dummy tasks on R over the shared range, so the reduction has no plan and
// solving it reports CauseContention whatever the real tasks are. Adjacent
// windows such as [3, 5) and [5, 8) do not overlap and are accepted.
// The input problem is not modified.
func Reduce(p Problem) (*Reduction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := p.Clone()
	red := &Reduction{Synthetic: make(map[ID]struct{})}
	ids := newIDSource(p)

	encode := func(kind ResourceKind, r *Resource) {
		code := "w"
		if kind == KindMachine {
			code = "m"
		}
		for k, w := range r.BusyWindows {
			scope := fmt.Sprintf("%s/%s/%d", code, r.ID, k)
			tag := ids.mint("~busy/" + scope)
			r.Types = r.Types.With(tag)

			phantom := Resource{ID: ID(ids.mint("~phantom/" + scope)), Types: TagSet{tag}}
			if kind == KindWorker {
				out.Machines = append(out.Machines, phantom)
			} else {
				out.Workers = append(out.Workers, phantom)
			}

			dummy := Task{
				ID:            ID(ids.mint("~dummy/" + scope)),
				Type:          tag,
				Duration:      w.End - w.Start,
				EarliestStart: w.Start,
				Deadline:      w.End,
			}
			out.Tasks = append(out.Tasks, dummy)
			red.Synthetic[dummy.ID] = struct{}{}
		}
		r.BusyWindows = nil
	}

	// Phantoms are appended after the real resources, so the index bounds
	// below only visit real ones.
	nw, nm := len(out.Workers), len(out.Machines)
	for i := 0; i < nw; i++ {
		encode(KindWorker, &out.Workers[i])
	}
	for i := 0; i < nm; i++ {
		encode(KindMachine, &out.Machines[i])
	}

	red.Problem = out
	return red, nil
}

// Strip removes synthetic tasks from a plan of the reduced problem and
// recomputes the makespan over the real tasks (0 when none are left).
func (r *Reduction) Strip(plan *Plan) *Plan {
	out := &Plan{Assignments: make([]Assignment, 0, len(plan.Assignments))}
	for _, a := range plan.Assignments {
		if r.IsSynthetic(a.TaskID) {
			continue
		}
		out.Assignments = append(out.Assignments, a)
		out.Makespan = max(out.Makespan, a.End)
	}
	return out
}

// idSource mints identifiers that collide with no task id, resource id or
// capability tag of the instance, nor with each other. A name is tried as
// given first, then with an increasing counter suffix.
type idSource struct {
	taken map[string]struct{}
	next  int
}

func newIDSource(p Problem) *idSource {
	s := &idSource{taken: make(map[string]struct{})}
	for _, t := range p.Tasks {
		s.taken[string(t.ID)] = struct{}{}
		s.taken[t.Type] = struct{}{}
	}
	for _, rs := range [][]Resource{p.Workers, p.Machines} {
		for _, r := range rs {
			s.taken[string(r.ID)] = struct{}{}
			for _, tag := range r.Types {
				s.taken[tag] = struct{}{}
			}
		}
	}
	return s
}

func (s *idSource) mint(name string) string {
	candidate := name
	for {
		if _, used := s.taken[candidate]; !used {
			s.taken[candidate] = struct{}{}
			return candidate
		}
		s.next++
		candidate = fmt.Sprintf("%s#%d", name, s.next)
	}
}
