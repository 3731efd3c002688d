package problemio

import (
	"context"
	"errors"

	"github.com/gitrdm/gokanplan/pkg/schedule"
)

// Failure codes shared by the HTTP and NATS transports.
const (
	CodeInvalidProblem = "invalid_problem"
	CodeInfeasible     = "infeasible"
	CodeTimeout        = "timeout"
	CodeCancelled      = "cancelled"
	CodeInternal       = "internal"
)

// Failure is the wire form of a solve error.
type Failure struct {
	Code     string `json:"code" yaml:"code"`
	Detail   string `json:"detail" yaml:"detail"`
	Cause    string `json:"cause,omitempty" yaml:"cause,omitempty"`
	TaskID   string `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// Error lets a decoded Failure travel as an error on the client side.
func (f *Failure) Error() string { return f.Message }

// Is maps the failure code back onto the schedule sentinels.
func (f *Failure) Is(target error) bool {
	switch target {
	case schedule.ErrInvalidProblem:
		return f.Code == CodeInvalidProblem
	case schedule.ErrNoFeasibleSchedule:
		return f.Code == CodeInfeasible || f.Code == CodeTimeout
	case schedule.ErrSolverTimeout:
		return f.Code == CodeTimeout
	}
	return false
}

// DescribeError classifies err for a transport reply.
func DescribeError(err error) Failure {
	f := Failure{Code: CodeInternal, Detail: "Internal error", Message: err.Error()}

	var inf *schedule.InfeasibleError
	switch {
	case errors.As(err, &inf):
		f.Code = CodeInfeasible
		if inf.Cause == schedule.CauseTimeout {
			f.Code = CodeTimeout
		}
		f.Detail = "No feasible schedule"
		f.Cause = string(inf.Cause)
		f.TaskID = string(inf.TaskID)
		f.Resource = string(inf.Resource)
	case errors.Is(err, schedule.ErrInvalidProblem):
		f.Code = CodeInvalidProblem
		f.Detail = "Invalid problem"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		f.Code = CodeCancelled
		f.Detail = "Request cancelled"
	}
	return f
}
