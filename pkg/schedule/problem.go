// Package schedule compiles dual-resource scheduling problems into
// constraint models and turns engine solutions back into plans.
//
// A Problem holds tasks, workers and machines. Each task needs exactly one
// worker and one machine whose capability sets contain the task type, for
// the whole task duration, inside its time window. Resources may carry busy
// windows; SolveWithAvailability encodes them as synthetic demand (a phantom
// counterpart resource plus a dummy task per window) so the core formulation
// stays unchanged.
//
// This file defines the problem data model and its validation.
package schedule

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

// ID identifies a task or a resource. It is opaque to the scheduler; the
// JSON and YAML decoders accept both strings and integers.
type ID string

// TagSet is a capability set. Order and duplicates carry no meaning.
type TagSet []string

// Has reports whether tag is in the set.
func (s TagSet) Has(tag string) bool {
	return slices.Contains(s, tag)
}

// With returns a copy of the set extended with tag.
func (s TagSet) With(tag string) TagSet {
	out := make(TagSet, len(s), len(s)+1)
	copy(out, s)
	return append(out, tag)
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := slices.Clone([]string(s))
	slices.Sort(out)
	return out
}

// Task is a unit of work of a given type.
type Task struct {
	ID            ID     `json:"id" yaml:"id"`
	Type          string `json:"type" yaml:"type"`
	Duration      int    `json:"duration" yaml:"duration"`
	EarliestStart int    `json:"earliest_start" yaml:"earliest_start"`
	Deadline      int    `json:"deadline" yaml:"deadline"`
}

// LatestStart returns deadline - duration.
func (t Task) LatestStart() int {
	return t.Deadline - t.Duration
}

// BusyWindow is a half-open interval [Start, End) during which a resource
// cannot be used.
type BusyWindow struct {
	Start int
	End   int
}

func (w BusyWindow) String() string {
	return fmt.Sprintf("[%d,%d)", w.Start, w.End)
}

// Resource is a worker or a machine. Which one it is follows from the list
// of the Problem it appears in.
type Resource struct {
	ID          ID           `json:"id" yaml:"id"`
	Types       TagSet       `json:"types" yaml:"types"`
	BusyWindows []BusyWindow `json:"busy_windows,omitempty" yaml:"busy_windows,omitempty"`
}

// CanRun reports whether the resource is capable of the task.
func (r Resource) CanRun(t Task) bool {
	return r.Types.Has(t.Type)
}

// ResourceKind distinguishes the two resource classes.
type ResourceKind string

const (
	KindWorker  ResourceKind = "worker"
	KindMachine ResourceKind = "machine"
)

// Problem is one scheduling instance.
type Problem struct {
	Workers  []Resource `json:"workers" yaml:"workers"`
	Machines []Resource `json:"machines" yaml:"machines"`
	Tasks    []Task     `json:"tasks" yaml:"tasks"`
}

// HasBusyWindows reports whether any resource carries a busy window.
func (p Problem) HasBusyWindows() bool {
	return p.BusyWindowCount() > 0
}

// BusyWindowCount returns the number of busy windows over all resources.
func (p Problem) BusyWindowCount() int {
	n := 0
	for _, r := range p.Workers {
		n += len(r.BusyWindows)
	}
	for _, r := range p.Machines {
		n += len(r.BusyWindows)
	}
	return n
}

// Horizon returns the largest deadline, 0 for an empty task list.
func (p Problem) Horizon() int {
	h := 0
	for _, t := range p.Tasks {
		h = max(h, t.Deadline)
	}
	return h
}

// Clone returns a deep copy: capability sets and busy windows are not
// shared with the receiver.
func (p Problem) Clone() Problem {
	return Problem{
		Workers:  cloneResources(p.Workers),
		Machines: cloneResources(p.Machines),
		Tasks:    slices.Clone(p.Tasks),
	}
}

func cloneResources(rs []Resource) []Resource {
	if rs == nil {
		return nil
	}
	out := make([]Resource, len(rs))
	for i, r := range rs {
		out[i] = Resource{
			ID:          r.ID,
			Types:       slices.Clone(r.Types),
			BusyWindows: slices.Clone(r.BusyWindows),
		}
	}
	return out
}

// Validate checks the problem for malformed input and returns every
// violation at once, wrapped in ErrInvalidProblem.
//
// Structural infeasibility (a window too small for its task) is not a
// validation error: it is a property of a well-formed instance and is
// reported by Build.
func (p Problem) Validate() error {
	var err error

	seen := make(map[ID]struct{}, len(p.Tasks))
	for i, t := range p.Tasks {
		if t.ID == "" {
			err = multierr.Append(err, fmt.Errorf("task #%d: empty id", i))
		} else if _, dup := seen[t.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("task %q: duplicate id", t.ID))
		}
		seen[t.ID] = struct{}{}
		if t.Type == "" {
			err = multierr.Append(err, fmt.Errorf("task %q: empty type", t.ID))
		}
		if t.Duration <= 0 {
			err = multierr.Append(err, fmt.Errorf("task %q: duration %d must be positive", t.ID, t.Duration))
		}
		if t.EarliestStart < 0 {
			err = multierr.Append(err, fmt.Errorf("task %q: earliest_start %d must not be negative", t.ID, t.EarliestStart))
		}
	}

	err = multierr.Append(err, validateResources(KindWorker, p.Workers))
	err = multierr.Append(err, validateResources(KindMachine, p.Machines))

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProblem, err)
	}
	return nil
}

func validateResources(kind ResourceKind, rs []Resource) error {
	var err error
	seen := make(map[ID]struct{}, len(rs))
	for i, r := range rs {
		if r.ID == "" {
			err = multierr.Append(err, fmt.Errorf("%s #%d: empty id", kind, i))
		} else if _, dup := seen[r.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("%s %q: duplicate id", kind, r.ID))
		}
		seen[r.ID] = struct{}{}
		for _, tag := range r.Types {
			if tag == "" {
				err = multierr.Append(err, fmt.Errorf("%s %q: empty capability tag", kind, r.ID))
			}
		}
		for _, w := range r.BusyWindows {
			if w.Start < 0 {
				err = multierr.Append(err, fmt.Errorf("%s %q: busy window %s starts before 0", kind, r.ID, w))
			}
			if w.Start >= w.End {
				err = multierr.Append(err, fmt.Errorf("%s %q: busy window %s is empty", kind, r.ID, w))
			}
		}
	}
	return err
}
