package schedule

import (
	"fmt"

	"github.com/gitrdm/gokanplan/pkg/cp"
)

// Assignment places one task on a worker and a machine over [Start, End).
type Assignment struct {
	TaskID    ID  `json:"task_id" yaml:"task_id"`
	WorkerID  ID  `json:"worker_id" yaml:"worker_id"`
	MachineID ID  `json:"machine_id" yaml:"machine_id"`
	Start     int `json:"start" yaml:"start"`
	End       int `json:"end" yaml:"end"`
}

// Plan is a complete schedule. Assignments follow the order of the tasks
// in the problem.
type Plan struct {
	Makespan    int          `json:"makespan" yaml:"makespan"`
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
}

// Assignment returns the assignment of a task, if present.
func (p *Plan) Assignment(id ID) (Assignment, bool) {
	for _, a := range p.Assignments {
		if a.TaskID == id {
			return a, true
		}
	}
	return Assignment{}, false
}

// Extract reads a plan out of an engine result: for each task, the worker
// and machine whose literal is 1 and the start value.
func Extract(f *Formulation, res *cp.Result) (*Plan, error) {
	if !res.HasSolution() {
		return nil, fmt.Errorf("extract: result has no solution (status %s)", res.Status)
	}
	plan := &Plan{
		Makespan:    res.Value(f.Makespan),
		Assignments: make([]Assignment, len(f.Problem.Tasks)),
	}
	for i, t := range f.Problem.Tasks {
		w, ok := selected(res, f.WorkerLit[i])
		if !ok {
			return nil, fmt.Errorf("extract task %q: no worker selected", t.ID)
		}
		m, ok := selected(res, f.MachineLit[i])
		if !ok {
			return nil, fmt.Errorf("extract task %q: no machine selected", t.ID)
		}
		start := res.Value(f.Start[i])
		plan.Assignments[i] = Assignment{
			TaskID:    t.ID,
			WorkerID:  f.Problem.Workers[w].ID,
			MachineID: f.Problem.Machines[m].ID,
			Start:     start,
			End:       start + t.Duration,
		}
	}
	return plan, nil
}

func selected(res *cp.Result, lits []*cp.IntVar) (int, bool) {
	for j, l := range lits {
		if res.Value(l) == 1 {
			return j, true
		}
	}
	return -1, false
}
