package ipfp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorConverges(t *testing.T) {
	m := NewMonitor(10)
	assert.Equal(t, Iterating, m.State())
	assert.False(t, m.Done())

	assert.Equal(t, Iterating, m.Observe(true, false))
	assert.Equal(t, Iterating, m.Observe(false, true))
	assert.Equal(t, Converged, m.Observe(true, true))
	assert.Equal(t, 3, m.Iterations())
	assert.True(t, m.Done())

	// terminal
	assert.Equal(t, Converged, m.Observe(false, false))
	assert.Equal(t, 3, m.Iterations())
}

func TestMonitorExhaustsBudget(t *testing.T) {
	m := NewMonitor(3)
	m.Observe(false, false)
	m.Observe(true, false)
	assert.Equal(t, BudgetExhausted, m.Observe(false, true))
	assert.Equal(t, 3, m.Iterations())
	assert.True(t, m.Done())
}

func TestMonitorConvergenceOnLastIteration(t *testing.T) {
	m := NewMonitor(2)
	m.Observe(false, false)
	assert.Equal(t, Converged, m.Observe(true, true))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "iterating", Iterating.String())
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "budget_exhausted", BudgetExhausted.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
