// Package cva values the constrained worst-case credit valuation adjustment of
// a counterparty from its path-wise exposure profile and default term structure.
package cva

import (
	"errors"
	"fmt"
	"math"

	"github.com/bcdannyboy/wcva/coupling"
	"github.com/bcdannyboy/wcva/ipfp"
	"github.com/bcdannyboy/wcva/numerics"
	"github.com/bcdannyboy/wcva/scenario"
)

var ErrInvalidLossGivenDefault = errors.New("cva: loss given default must be finite and in [0, 1]")

// Calculator scales expected losses by a fixed loss given default
type Calculator struct {
	LossGivenDefault float64
	Options          ipfp.Options
}

// NewCalculator returns a Calculator running the engine with default options
func NewCalculator(lgd float64) (*Calculator, error) {
	c := &Calculator{LossGivenDefault: lgd, Options: ipfp.DefaultOptions()}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Calculator) validate() error {
	if !(c.LossGivenDefault >= 0 && c.LossGivenDefault <= 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidLossGivenDefault, c.LossGivenDefault)
	}
	return nil
}

// Result is one worst-case CVA valuation
type Result struct {
	Value        float64 // LossGivenDefault * ExpectedLoss
	ExpectedLoss float64
	Penalty      float64
	Status       ipfp.Status
	Iterations   int
	Rescale      float64
	Workers      int
	Coupling     *coupling.Matrix
}

// WorstCase solves for the worst-case coupling of paths scenario paths at the
// given penalty factor. paths is explicit so a single-interval problem, which
// carries no exposure vectors, is still well defined.
// When the engine returns ipfp.ErrNotConverged the best-effort result is still returned.
func (c *Calculator) WorstCase(exposures [][]float64, probabilities []float64, paths int, penalty float64) (*Result, error) {
	return c.solve(paths, exposures, probabilities, penalty)
}

// WorstCaseFromProvider reads the scenario through p and solves it
func (c *Calculator) WorstCaseFromProvider(p scenario.Provider, penalty float64) (*Result, error) {
	exposures, probabilities := scenario.Collect(p)
	return c.solve(p.PathCount(), exposures, probabilities, penalty)
}

func (c *Calculator) solve(paths int, exposures [][]float64, probabilities []float64, penalty float64) (*Result, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	sol, err := ipfp.Solve(ipfp.Problem{
		Exposures:            exposures,
		DefaultProbabilities: probabilities,
		Paths:                paths,
		PenaltyFactor:        penalty,
	}, c.Options)
	if sol == nil {
		return nil, err
	}
	return &Result{
		Value:        c.LossGivenDefault * sol.ExpectedLoss,
		ExpectedLoss: sol.ExpectedLoss,
		Penalty:      penalty,
		Status:       sol.Status,
		Iterations:   sol.Iterations,
		Rescale:      sol.Rescale,
		Workers:      sol.Workers,
		Coupling:     sol.Coupling,
	}, err
}

// Independent is the CVA when default is independent of exposure,
// LGD * Σ_j p[j] * mean_i e[j][i], which is the zero-penalty limit of WorstCase.
func (c *Calculator) Independent(exposures [][]float64, probabilities []float64) (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	if len(probabilities) < 1 || (len(exposures) != len(probabilities)-1 && len(exposures) != len(probabilities)) {
		return 0, fmt.Errorf("%w: %d exposure vectors for %d intervals", ipfp.ErrInvalidInput, len(exposures), len(probabilities))
	}
	var total numerics.KahanSum
	for j, col := range exposures[:len(probabilities)-1] {
		if len(col) == 0 {
			return 0, fmt.Errorf("%w: exposure vector %d is empty", ipfp.ErrInvalidInput, j)
		}
		mean := numerics.Sum(col) / float64(len(col))
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			return 0, fmt.Errorf("%w: exposure vector %d has a non-finite mean", ipfp.ErrInvalidInput, j)
		}
		total.Add(probabilities[j] * mean)
	}
	return c.LossGivenDefault * total.Value(), nil
}

// Sweep values the provider at every penalty in turn. onResult, when set, sees
// each result as soon as it is available. A failure stops the sweep and returns
// the results so far; ipfp.ErrNotConverged does not stop it.
func (c *Calculator) Sweep(p scenario.Provider, penalties []float64, onResult func(*Result)) ([]*Result, error) {
	results := make([]*Result, 0, len(penalties))
	var notConverged error
	for _, penalty := range penalties {
		res, err := c.WorstCaseFromProvider(p, penalty)
		if err != nil && !errors.Is(err, ipfp.ErrNotConverged) {
			return results, fmt.Errorf("penalty %v: %w", penalty, err)
		}
		if err != nil && notConverged == nil {
			notConverged = fmt.Errorf("penalty %v: %w", penalty, err)
		}
		results = append(results, res)
		if onResult != nil {
			onResult(res)
		}
	}
	return results, notConverged
}
