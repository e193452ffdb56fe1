package ipfp

import (
	"math"
	"testing"

	"github.com/bcdannyboy/wcva/coupling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"
)

// twoByTwoCoupling is the only family of couplings with uniform path mass and
// probabilities {0.5, 0.5}: t is the mass on (path 1, default).
func twoByTwoCoupling(t *testing.T, mass float64) *coupling.Matrix {
	t.Helper()
	c, err := coupling.New(2, 2)
	require.NoError(t, err)
	c.Set(0, 0, 0.5-mass)
	c.Set(0, 1, mass)
	c.Set(1, 0, mass)
	c.Set(1, 1, 0.5-mass)
	return c
}

func TestObjectiveAtProductMeasure(t *testing.T) {
	p := twoByTwo(0)
	c := twoByTwoCoupling(t, 0.25)
	assert.InDelta(t, 2.5, Objective(c, p.Exposures, p.DefaultProbabilities, 0), 1e-12)
	assert.InDelta(t, 2.5, Objective(c, p.Exposures, p.DefaultProbabilities, 3), 1e-12)

	skewed := twoByTwoCoupling(t, 0.4)
	assert.True(t, math.IsInf(Objective(skewed, p.Exposures, p.DefaultProbabilities, 0), -1))
}

func TestObjectiveMaximizedBySolve(t *testing.T) {
	const penalty = 0.2
	p := twoByTwo(penalty)

	sol := solve(t, p)
	require.Equal(t, Converged, sol.Status)

	// closed form: t/(0.5-t) = exp(5*penalty)
	tilt := math.Exp(5 * penalty)
	wantMass := 0.5 * tilt / (1 + tilt)
	assert.InDelta(t, 10*wantMass, sol.ExpectedLoss, 1e-6)

	objective := func(x []float64) float64 {
		mass := 0.5 / (1 + math.Exp(-x[0]))
		return -Objective(twoByTwoCoupling(t, mass), p.Exposures, p.DefaultProbabilities, penalty)
	}
	res, err := optimize.Minimize(optimize.Problem{Func: objective}, []float64{0}, nil, &optimize.NelderMead{})
	require.NoError(t, err)

	bestMass := 0.5 / (1 + math.Exp(-res.X[0]))
	assert.InDelta(t, wantMass, bestMass, 1e-4)

	solved := Objective(sol.Coupling, p.Exposures, p.DefaultProbabilities, penalty)
	assert.GreaterOrEqual(t, solved, -res.F-1e-5)
}
