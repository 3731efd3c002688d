package cp

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// portfolioOrder is the heuristic rotation of portfolio workers. Worker i
// uses portfolioOrder[(first+i) % len] where first is the configured one.
var portfolioOrder = []VariableHeuristic{HeuristicDom, HeuristicEarliest, HeuristicDomDeg, HeuristicLex}

// errTreeExhausted is returned by the first portfolio worker that exhausts
// its tree. The errgroup cancels the others.
var errTreeExhausted = errors.New("search tree exhausted")

// minimizePortfolio runs cfg.workers branch-and-bound searches over the same
// model with different heuristics. All of them share the incumbent, so a
// solution found by one worker immediately tightens the cutoff of the
// others. Any single exhausted tree is a proof, since every cutoff comes
// from a real solution.
func minimizePortfolio(ctx context.Context, model *Model, obj *IntVar, root *SolverState, inc *incumbent, cfg optConfig, mon *SolverMonitor) bool {
	g, gctx := errgroup.WithContext(ctx)
	budget := newNodeBudget(cfg.nodeLimit)

	first := 0
	for i, h := range portfolioOrder {
		if h == cfg.heuristic {
			first = i
		}
	}
	for i := 0; i < cfg.workers; i++ {
		h := portfolioOrder[(first+i)%len(portfolioOrder)]
		w := newSearchSolver(model, obj, h, mon)
		g.Go(func() error {
			if w.branchAndBound(gctx, root, inc, budget) {
				return errTreeExhausted
			}
			return nil
		})
	}
	return errors.Is(g.Wait(), errTreeExhausted)
}

// incumbent is the best solution found so far, shared by all workers.
// The bound is read lock-free on every node; updates take the mutex.
type incumbent struct {
	mu     sync.Mutex
	best   atomic.Int64
	values []int
}

func newIncumbent() *incumbent {
	in := &incumbent{}
	in.best.Store(math.MaxInt64)
	return in
}

// bound returns the objective of the incumbent, if any.
func (in *incumbent) bound() (int, bool) {
	b := in.best.Load()
	if b == math.MaxInt64 {
		return 0, false
	}
	return int(b), true
}

// offer installs the solution if it improves the incumbent.
func (in *incumbent) offer(objective int, values []int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int64(objective) >= in.best.Load() {
		return false
	}
	in.values = values
	in.best.Store(int64(objective))
	return true
}

func (in *incumbent) snapshot() ([]int, int, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.values == nil {
		return nil, 0, false
	}
	out := make([]int, len(in.values))
	copy(out, in.values)
	return out, int(in.best.Load()), true
}

// nodeBudget is a node limit shared by all workers; a zero limit is
// unbounded.
type nodeBudget struct {
	limit int64
	used  atomic.Int64
}

func newNodeBudget(limit int) *nodeBudget {
	return &nodeBudget{limit: int64(limit)}
}

func (b *nodeBudget) take() bool {
	n := b.used.Add(1)
	return b.limit <= 0 || n <= b.limit
}
