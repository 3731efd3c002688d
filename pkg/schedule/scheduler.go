package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/pkg/cp"
)

// DefaultTimeBudget is the wall-clock budget of one solve.
const DefaultTimeBudget = 10 * time.Second

// Engine solves a compiled model, minimizing objective within budget.
type Engine interface {
	Solve(ctx context.Context, model *cp.Model, objective *cp.IntVar, budget time.Duration) (*cp.Result, error)
}

// CPEngine runs the cp branch-and-bound.
type CPEngine struct {
	// Workers > 1 runs a portfolio of parallel searches.
	Workers int
	// NodeLimit bounds the search tree; 0 means unbounded.
	NodeLimit int
}

// Solve implements Engine.
func (e CPEngine) Solve(ctx context.Context, model *cp.Model, objective *cp.IntVar, budget time.Duration) (*cp.Result, error) {
	return cp.Minimize(ctx, model, objective,
		cp.WithTimeLimit(budget),
		cp.WithWorkers(e.Workers),
		cp.WithNodeLimit(e.NodeLimit),
	)
}

// Scheduler runs the compile, solve and extract pipeline. It is immutable
// after New and safe for concurrent use.
type Scheduler struct {
	engine Engine
	logger *zap.Logger
	budget time.Duration
	verify bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEngine replaces the default CPEngine.
func WithEngine(e Engine) Option {
	return func(s *Scheduler) { s.engine = e }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeBudget sets the per-solve budget. Non-positive values keep
// DefaultTimeBudget.
func WithTimeBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.budget = d
		}
	}
}

// WithVerify makes every solve check its plan with Plan.Verify before
// returning it.
func WithVerify(on bool) Option {
	return func(s *Scheduler) { s.verify = on }
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		engine: CPEngine{},
		logger: zap.NewNop(),
		budget: DefaultTimeBudget,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TimeBudget returns the configured per-solve budget.
func (s *Scheduler) TimeBudget() time.Duration {
	return s.budget
}

// Solve schedules a problem without busy windows. Problems carrying busy
// windows are rejected with ErrInvalidProblem; use SolveWithAvailability.
func (s *Scheduler) Solve(ctx context.Context, p Problem) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.HasBusyWindows() {
		return nil, fmt.Errorf("%w: %d busy windows given, use SolveWithAvailability", ErrInvalidProblem, p.BusyWindowCount())
	}
	plan, err := s.solve(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.check(plan, p)
}

// SolveWithAvailability schedules a problem whose resources may carry busy
// windows. The windows are reduced to synthetic demand, the reduced problem
// is solved, and synthetic tasks are stripped from the plan.
func (s *Scheduler) SolveWithAvailability(ctx context.Context, p Problem) (*Plan, error) {
	red, err := Reduce(p)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("reduced busy windows",
		zap.Int("windows", p.BusyWindowCount()),
		zap.Int("dummy_tasks", len(red.Synthetic)),
	)
	plan, err := s.solve(ctx, red.Problem)
	if err != nil {
		return nil, err
	}
	return s.check(red.Strip(plan), p)
}

func (s *Scheduler) check(plan *Plan, p Problem) (*Plan, error) {
	if !s.verify {
		return plan, nil
	}
	if err := plan.Verify(p); err != nil {
		s.logger.Error("plan failed verification", zap.Error(err))
		return nil, err
	}
	return plan, nil
}

func (s *Scheduler) solve(ctx context.Context, p Problem) (*Plan, error) {
	if len(p.Tasks) == 0 {
		return &Plan{Assignments: []Assignment{}}, nil
	}

	s.logProblem(p)
	f, err := Build(p)
	if err != nil {
		var inf *InfeasibleError
		if errors.As(err, &inf) {
			s.logger.Info("no feasible schedule", zap.String("cause", string(inf.Cause)), zap.String("task", string(inf.TaskID)))
		}
		return nil, err
	}

	res, err := s.engine.Solve(ctx, f.Model, f.Makespan, s.budget)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	fields := []zap.Field{
		zap.String("status", res.Status.String()),
		zap.Int("tasks", len(p.Tasks)),
		zap.Int("horizon", f.Horizon),
	}
	if res.Stats != nil {
		fields = append(fields,
			zap.Int("variables", res.Stats.Variables),
			zap.Int("constraints", res.Stats.Constraints),
			zap.Int("nodes", res.Stats.NodesExplored),
			zap.Int("solutions", res.Stats.SolutionsFound),
			zap.Duration("elapsed", res.Stats.SearchTime),
		)
	}

	switch res.Status {
	case cp.StatusOptimal, cp.StatusFeasible:
		plan, err := Extract(f, res)
		if err != nil {
			return nil, err
		}
		s.logger.Info("solve finished", append(fields, zap.Int("makespan", plan.Makespan))...)
		return plan, nil
	case cp.StatusInfeasible:
		inf := diagnose(p)
		s.logger.Info("no feasible schedule", append(fields,
			zap.String("cause", string(inf.Cause)),
			zap.String("task", string(inf.TaskID)),
		)...)
		return nil, inf
	default:
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("solve: %w", ctx.Err())
		}
		s.logger.Warn("time budget exhausted without a solution", append(fields, zap.Duration("budget", s.budget))...)
		return nil, &InfeasibleError{Cause: CauseTimeout}
	}
}

// diagnose explains a proven infeasibility: the first task lacking a
// capable worker or machine, otherwise contention.
func diagnose(p Problem) *InfeasibleError {
	for _, t := range p.Tasks {
		if !anyCanRun(p.Workers, t) {
			return &InfeasibleError{Cause: CauseCapability, TaskID: t.ID, Resource: KindWorker}
		}
		if !anyCanRun(p.Machines, t) {
			return &InfeasibleError{Cause: CauseCapability, TaskID: t.ID, Resource: KindMachine}
		}
	}
	return &InfeasibleError{Cause: CauseContention}
}

func anyCanRun(rs []Resource, t Task) bool {
	for _, r := range rs {
		if r.CanRun(t) {
			return true
		}
	}
	return false
}

func (s *Scheduler) logProblem(p Problem) {
	ce := s.logger.Check(zap.DebugLevel, "compiling problem")
	if ce == nil {
		return
	}
	ce.Write(
		zap.Int("tasks", len(p.Tasks)),
		zap.Int("workers", len(p.Workers)),
		zap.Int("machines", len(p.Machines)),
		zap.Int("horizon", p.Horizon()),
	)
	for _, w := range p.Workers {
		s.logger.Debug("worker", zap.String("id", string(w.ID)), zap.Strings("types", w.Types.Sorted()))
	}
	for _, m := range p.Machines {
		s.logger.Debug("machine", zap.String("id", string(m.ID)), zap.Strings("types", m.Types.Sorted()))
	}
	for _, t := range p.Tasks {
		s.logger.Debug("task",
			zap.String("id", string(t.ID)),
			zap.String("type", t.Type),
			zap.Int("duration", t.Duration),
			zap.Int("earliest_start", t.EarliestStart),
			zap.Int("deadline", t.Deadline),
		)
	}
}
