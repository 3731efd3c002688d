package cp

// monitor.go: statistics for the search

import (
	"fmt"
	"sync"
	"time"
)

// SolverStats holds statistics about one Minimize call.
type SolverStats struct {
	// Search statistics
	NodesExplored  int           // Number of search nodes explored
	Backtracks     int           // Number of failed or exhausted nodes
	SolutionsFound int           // Number of improving solutions found
	SearchTime     time.Duration // Wall time from start to finish
	MaxDepth       int           // Maximum search depth reached

	// Propagation statistics
	PropagationCount int           // Number of fixed-point runs
	PropagationTime  time.Duration // Time spent in propagation

	// Model size
	Variables   int
	Constraints int
	Workers     int
}

// SolverMonitor collects SolverStats. It is safe for concurrent use, so
// one monitor can be shared by all portfolio workers.
type SolverMonitor struct {
	mu        sync.Mutex
	stats     SolverStats
	startTime time.Time
}

// NewSolverMonitor creates a monitor and starts its clock.
func NewSolverMonitor() *SolverMonitor {
	return &SolverMonitor{startTime: time.Now()}
}

// GetStats returns a copy of the current statistics.
func (m *SolverMonitor) GetStats() *SolverStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	if stats.SearchTime == 0 {
		stats.SearchTime = time.Since(m.startTime)
	}
	return &stats
}

// propagationTimer is returned by StartPropagation and closed by
// EndPropagation; workers propagate concurrently, so the start time cannot
// live on the monitor itself.
type propagationTimer struct {
	start time.Time
}

// StartPropagation marks the beginning of a fixed-point run.
func (m *SolverMonitor) StartPropagation() propagationTimer {
	return propagationTimer{start: time.Now()}
}

// EndPropagation records a completed fixed-point run.
func (m *SolverMonitor) EndPropagation(t propagationTimer) {
	d := time.Since(t.start)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.PropagationTime += d
	m.stats.PropagationCount++
}

// RecordBacktrack records a failed or exhausted node.
func (m *SolverMonitor) RecordBacktrack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Backtracks++
}

// RecordNode records exploring a search node.
func (m *SolverMonitor) RecordNode() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.NodesExplored++
}

// RecordSolution records an improving solution.
func (m *SolverMonitor) RecordSolution() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SolutionsFound++
}

// RecordDepth records the current search depth.
func (m *SolverMonitor) RecordDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if depth > m.stats.MaxDepth {
		m.stats.MaxDepth = depth
	}
}

func (m *SolverMonitor) recordModel(model *Model, workers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Variables = model.VariableCount()
	m.stats.Constraints = model.ConstraintCount()
	m.stats.Workers = workers
}

// FinishSearch stops the clock.
func (m *SolverMonitor) FinishSearch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SearchTime = time.Since(m.startTime)
}

// String returns a formatted representation of the statistics.
func (s *SolverStats) String() string {
	return fmt.Sprintf(
		"Solver Statistics:\n"+
			"  Model: %d variables, %d constraints, %d workers\n"+
			"  Search: %d nodes, %d backtracks, %d solutions, %v time, max depth %d\n"+
			"  Propagation: %d runs, %v time",
		s.Variables, s.Constraints, s.Workers,
		s.NodesExplored, s.Backtracks, s.SolutionsFound, s.SearchTime, s.MaxDepth,
		s.PropagationCount, s.PropagationTime,
	)
}
