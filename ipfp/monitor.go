package ipfp

import "fmt"

// Status is the outcome of the iteration loop
type Status int

const (
	Iterating Status = iota
	Converged
	BudgetExhausted
)

func (s Status) String() string {
	switch s {
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case BudgetExhausted:
		return "budget_exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Monitor decides after every row+column pass whether to keep iterating.
// Converged requires both passes to report convergence in the same iteration.
type Monitor struct {
	maxIterations int
	iterations    int
	state         Status
}

func NewMonitor(maxIterations int) *Monitor {
	return &Monitor{maxIterations: maxIterations, state: Iterating}
}

// Observe records one completed iteration and returns the new state.
// Observing after a terminal state is a no-op.
func (m *Monitor) Observe(rowsConverged, columnsConverged bool) Status {
	if m.Done() {
		return m.state
	}
	m.iterations++
	switch {
	case rowsConverged && columnsConverged:
		m.state = Converged
	case m.iterations >= m.maxIterations:
		m.state = BudgetExhausted
	}
	return m.state
}

func (m *Monitor) State() Status { return m.state }

func (m *Monitor) Iterations() int { return m.iterations }

func (m *Monitor) Done() bool { return m.state != Iterating }
