package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProblem wraps every validation failure.
	ErrInvalidProblem = errors.New("invalid problem")

	// ErrNoFeasibleSchedule is the boundary condition reported whenever no
	// plan is returned for a well-formed problem.
	ErrNoFeasibleSchedule = errors.New("no feasible schedule")

	// ErrSolverTimeout marks an InfeasibleError caused by the time budget
	// running out before any solution was found. Infeasibility is not
	// proven in that case.
	ErrSolverTimeout = errors.New("solver time budget exhausted")

	// ErrInvalidPlan wraps every violation found by Plan.Verify.
	ErrInvalidPlan = errors.New("invalid plan")
)

// Cause classifies why no plan was produced.
type Cause string

const (
	// CauseStructural: a task window cannot hold its duration.
	CauseStructural Cause = "structural"
	// CauseCapability: a task has no compatible worker or machine.
	CauseCapability Cause = "capability"
	// CauseContention: every task has candidates but they cannot all be
	// served inside their windows.
	CauseContention Cause = "contention"
	// CauseTimeout: the budget ran out before any solution was found.
	CauseTimeout Cause = "timeout"
)

// InfeasibleError describes a well-formed problem without a plan.
// errors.Is(err, ErrNoFeasibleSchedule) holds for every cause;
// errors.Is(err, ErrSolverTimeout) holds for CauseTimeout only.
type InfeasibleError struct {
	Cause Cause
	// TaskID names the offending task for structural and capability causes.
	TaskID ID
	// Resource is the missing resource class for the capability cause.
	Resource ResourceKind
}

func (e *InfeasibleError) Error() string {
	switch e.Cause {
	case CauseStructural:
		return fmt.Sprintf("%s: task %q does not fit its window", ErrNoFeasibleSchedule, e.TaskID)
	case CauseCapability:
		return fmt.Sprintf("%s: no %s can run task %q", ErrNoFeasibleSchedule, e.Resource, e.TaskID)
	case CauseTimeout:
		return fmt.Sprintf("%s: %s", ErrNoFeasibleSchedule, ErrSolverTimeout)
	default:
		return fmt.Sprintf("%s: resources cannot serve every task in its window", ErrNoFeasibleSchedule)
	}
}

// Is matches ErrNoFeasibleSchedule, plus ErrSolverTimeout for timeouts.
func (e *InfeasibleError) Is(target error) bool {
	switch target {
	case ErrNoFeasibleSchedule:
		return true
	case ErrSolverTimeout:
		return e.Cause == CauseTimeout
	}
	return false
}
