package scenario

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewUniform builds a synthetic scenario with exposures drawn uniformly from
// [0, maxExposure] and a flat default term structure 1/intervals. Each
// loss-bearing interval gets its own source seeded from seed, so the result
// does not depend on the number of workers generating it.
func NewUniform(paths, intervals int, maxExposure float64, seed uint64, workers int) (*Static, error) {
	if paths < 1 || intervals < 1 {
		return nil, fmt.Errorf("%w: need at least one path and one interval, got %d x %d", ErrInvalidScenario, paths, intervals)
	}
	if !(maxExposure >= 0) || math.IsInf(maxExposure, 0) {
		return nil, fmt.Errorf("%w: max exposure must be finite and non-negative, got %v", ErrInvalidScenario, maxExposure)
	}

	exposures := make([][]float64, intervals-1)
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for j := range exposures {
		j := j
		g.Go(func() error {
			dist := distuv.Uniform{Min: 0, Max: maxExposure, Src: rand.NewSource(seed + uint64(j))}
			col := make([]float64, paths)
			for i := range col {
				col[i] = dist.Rand()
			}
			exposures[j] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	probabilities := make([]float64, intervals)
	for j := range probabilities {
		probabilities[j] = 1 / float64(intervals)
	}

	if intervals == 1 {
		// a single no-default interval still needs a vector to carry the path count
		exposures = [][]float64{make([]float64, paths)}
	}
	return NewStatic(exposures, probabilities)
}

// FlatHazard returns the default probabilities of a constant hazard rate on
// the grid 0 < times[0] < ... < times[k-1]: entry j is
// exp(-h t[j-1]) - exp(-h t[j]) with t[-1] = 0, and the extra last entry is
// the survival probability exp(-h t[k-1]) to the horizon.
func FlatHazard(hazard float64, times []float64) ([]float64, error) {
	if !(hazard >= 0) || math.IsInf(hazard, 0) {
		return nil, fmt.Errorf("%w: hazard rate must be finite and non-negative, got %v", ErrInvalidScenario, hazard)
	}
	probabilities := make([]float64, len(times)+1)
	prevTime, prevSurvival := 0.0, 1.0
	for j, t := range times {
		if !(t > prevTime) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("%w: time grid must be finite and strictly increasing from 0, got %v at %d", ErrInvalidScenario, t, j)
		}
		survival := math.Exp(-hazard * t)
		probabilities[j] = prevSurvival - survival
		prevTime, prevSurvival = t, survival
	}
	probabilities[len(times)] = prevSurvival
	return probabilities, nil
}

// FloorAndDiscount turns mark-to-market values mtm[j][i] into exposures
// max(mtm[j][i], 0) * discount[j]. mtm is left untouched.
func FloorAndDiscount(mtm [][]float64, discount []float64) ([][]float64, error) {
	if len(mtm) != len(discount) {
		return nil, fmt.Errorf("%w: %d value vectors for %d discount factors", ErrInvalidScenario, len(mtm), len(discount))
	}
	out := make([][]float64, len(mtm))
	for j, col := range mtm {
		df := discount[j]
		if !(df >= 0) || math.IsInf(df, 0) {
			return nil, fmt.Errorf("%w: discount factor %d is %v", ErrInvalidScenario, j, df)
		}
		exp := make([]float64, len(col))
		for i, v := range col {
			exp[i] = math.Max(v, 0)
		}
		floats.Scale(df, exp)
		out[j] = exp
	}
	return out, nil
}
