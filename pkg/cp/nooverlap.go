// Package cp implements global constraints for finite-domain CP.
//
// This file provides NoOverlap over optional intervals, the disjunctive
// resource of scheduling models: at most one present interval executes at
// any time.
//
// Contract (discrete time, 0-based domains):
//   - Interval i starts at Start (an IntVar), lasts Duration > 0 time units
//     and occupies the half-open range [s, s+Duration), modeled as the
//     inclusive range [s, s+Duration-1].
//   - Presence is a 0/1 variable. A nil Presence means the interval is
//     always present.
//
// Propagation works on bounds only, so its cost depends on the number of
// intervals and never on the width of the time horizon.
//   - est = min(Start), lst = max(Start). If lst < est+Duration the interval
//     must execute over [lst, est+Duration) whatever its start: that is its
//     compulsory part. Only intervals whose presence is fixed to 1
//     contribute one.
//   - Compulsory parts are sorted by start. Two overlapping parts make the
//     state inconsistent.
//   - Overload: for present intervals, if the durations of those that must
//     run inside [a, b) add up to more than b-a, the state is inconsistent.
//   - est of an interval is pushed past every compulsory part of the other
//     intervals that [est, est+Duration) would meet, and lst is pulled back
//     the same way. Present intervals get the new bounds.
//   - An optional interval with no start clear of the compulsory parts
//     becomes absent. Its start domain is left alone: the start variable is
//     shared with the other candidate resources of the same task.
package cp

import (
	"fmt"
	"sort"
)

// Interval is a fixed-length interval with a start variable and an optional
// presence literal.
type Interval struct {
	Start    *IntVar
	Duration int
	Presence *IntVar
}

// NoOverlap forbids any two present intervals from overlapping.
type NoOverlap struct {
	intervals []Interval
	vars      []*IntVar
}

// NewNoOverlap constructs the constraint.
//
// Every interval needs a non-nil Start, a strictly positive Duration and,
// when given, a boolean Presence.
func NewNoOverlap(intervals []Interval) (*NoOverlap, error) {
	if len(intervals) == 0 {
		return nil, fmt.Errorf("NoOverlap: requires at least one interval")
	}
	ivs := make([]Interval, len(intervals))
	copy(ivs, intervals)
	var vars []*IntVar
	for i, iv := range ivs {
		if iv.Start == nil {
			return nil, fmt.Errorf("NoOverlap: interval %d has nil start", i)
		}
		if iv.Duration <= 0 {
			return nil, fmt.Errorf("NoOverlap: interval %d has non-positive duration %d", i, iv.Duration)
		}
		vars = append(vars, iv.Start)
		if iv.Presence != nil {
			if d := iv.Presence.Domain(); d == nil || d.Max() > 1 {
				return nil, fmt.Errorf("NoOverlap: interval %d presence %s is not boolean", i, iv.Presence.Name())
			}
			vars = append(vars, iv.Presence)
		}
	}
	return &NoOverlap{intervals: ivs, vars: vars}, nil
}

func (c *NoOverlap) Variables() []*IntVar {
	out := make([]*IntVar, len(c.vars))
	copy(out, c.vars)
	return out
}

func (c *NoOverlap) Type() string { return "NoOverlap" }

func (c *NoOverlap) String() string {
	return fmt.Sprintf("NoOverlap(|intervals|=%d)", len(c.intervals))
}

const (
	absent = iota
	present
	optional
)

// segment is the compulsory part [start, end) of interval owner.
type segment struct {
	start, end int
	owner      int
}

// Propagate performs compulsory-part and overload filtering; see the file
// header.
func (c *NoOverlap) Propagate(solver *Solver, state *SolverState) (*SolverState, error) {
	n := len(c.intervals)
	doms := make([]Domain, n)
	status := make([]int, n)
	var segs []segment
	var live []int
	for i, iv := range c.intervals {
		status[i] = present
		if iv.Presence != nil {
			p := solver.GetDomain(state, iv.Presence.ID())
			switch {
			case p.Count() == 0:
				return nil, fmt.Errorf("NoOverlap: presence %s has empty domain", iv.Presence.Name())
			case !p.Has(1):
				status[i] = absent
				continue
			case p.Has(0):
				status[i] = optional
			}
		}
		d := solver.GetDomain(state, iv.Start.ID())
		if d.Count() == 0 {
			return nil, fmt.Errorf("NoOverlap: start %s has empty domain", iv.Start.Name())
		}
		doms[i] = d
		live = append(live, i)
		if status[i] == present && d.Max() < d.Min()+iv.Duration {
			segs = append(segs, segment{start: d.Max(), end: d.Min() + iv.Duration, owner: i})
		}
	}
	if len(live) == 0 {
		return state, nil
	}

	sort.Slice(segs, func(a, b int) bool { return segs[a].start < segs[b].start })
	for k := 1; k < len(segs); k++ {
		if segs[k].start < segs[k-1].end {
			return nil, fmt.Errorf("NoOverlap: compulsory parts overlap at t=%d", segs[k].start)
		}
	}

	if err := c.checkOverload(doms, status); err != nil {
		return nil, err
	}

	for _, i := range live {
		iv := c.intervals[i]
		d := doms[i]
		est := earliestFit(segs, i, d, iv.Duration)
		lst := -1
		if est != -1 {
			lst = latestFit(segs, i, d, iv.Duration)
		}

		if status[i] == optional {
			if est == -1 || lst < est {
				p := solver.GetDomain(state, iv.Presence.ID())
				state, _ = solver.SetDomain(state, iv.Presence.ID(), p.Remove(1))
			}
			continue
		}
		if est == -1 || lst < est {
			return nil, fmt.Errorf("NoOverlap: start %s has no feasible value", iv.Start.Name())
		}
		if est > d.Min() || lst < d.Max() {
			state, _ = solver.SetDomain(state, iv.Start.ID(), d.RemoveBelow(est).RemoveAbove(lst))
		}
	}
	return state, nil
}

// earliestFit returns the smallest start in d at which [s, s+dur) meets no
// compulsory part other than owner's, or -1. segs is sorted and disjoint.
func earliestFit(segs []segment, owner int, d Domain, dur int) int {
	s := d.Min()
	for s != -1 {
		moved := s
		for _, sg := range segs {
			if sg.owner == owner || sg.end <= moved {
				continue
			}
			if sg.start >= moved+dur {
				break
			}
			moved = sg.end
		}
		if moved == s {
			return s
		}
		s = d.Next(moved)
	}
	return -1
}

// latestFit is the mirror of earliestFit.
func latestFit(segs []segment, owner int, d Domain, dur int) int {
	s := d.Max()
	for s != -1 {
		moved := s
		for k := len(segs) - 1; k >= 0; k-- {
			sg := segs[k]
			if sg.owner == owner || sg.start >= moved+dur {
				continue
			}
			if sg.end <= moved {
				break
			}
			moved = sg.start - dur
		}
		if moved == s {
			return s
		}
		if moved < 0 {
			return -1
		}
		s = d.Prev(moved)
	}
	return -1
}

// checkOverload fails when the present intervals that must run inside some
// window [a, b) need more than b-a time units. Windows are bounded by the
// est and latest end of the intervals: O(n²) per call.
func (c *NoOverlap) checkOverload(doms []Domain, status []int) error {
	type task struct{ est, lct, dur int }
	var tasks []task
	for i, iv := range c.intervals {
		if status[i] != present {
			continue
		}
		tasks = append(tasks, task{est: doms[i].Min(), lct: doms[i].Max() + iv.Duration, dur: iv.Duration})
	}
	if len(tasks) < 2 {
		return nil
	}
	sort.Slice(tasks, func(a, b int) bool { return tasks[a].lct < tasks[b].lct })
	for _, from := range tasks {
		a := from.est
		load := 0
		for _, t := range tasks {
			if t.est < a {
				continue
			}
			load += t.dur
			if load > t.lct-a {
				return fmt.Errorf("NoOverlap: %d time units needed in [%d, %d)", load, a, t.lct)
			}
		}
	}
	return nil
}
