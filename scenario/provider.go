package scenario

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidScenario = errors.New("scenario: invalid scenario")

// Provider hands the engine one exposure vector and one default probability
// per time interval. The last interval means "no default within the horizon"
// and its exposure vector, if any, is never read by the engine.
type Provider interface {
	PathCount() int
	IntervalCount() int
	// Exposures returns the discounted floored exposures of every path for a
	// default in interval j. The returned slice must not be modified.
	Exposures(j int) []float64
	DefaultProbability(j int) float64
}

// Static is an in-memory Provider
type Static struct {
	paths         int
	exposures     [][]float64
	probabilities []float64
}

// NewStatic wraps caller-owned data. exposures may hold one vector per interval
// or one fewer; every vector must have the same non-zero length, so a
// single-interval scenario needs its trailing vector to fix the path count.
func NewStatic(exposures [][]float64, probabilities []float64) (*Static, error) {
	m := len(probabilities)
	if m < 1 {
		return nil, fmt.Errorf("%w: no intervals", ErrInvalidScenario)
	}
	if len(exposures) != m && len(exposures) != m-1 {
		return nil, fmt.Errorf("%w: %d exposure vectors for %d intervals", ErrInvalidScenario, len(exposures), m)
	}
	paths := 0
	if len(exposures) > 0 {
		paths = len(exposures[0])
	}
	for j, col := range exposures {
		if len(col) != paths {
			return nil, fmt.Errorf("%w: exposure vector %d has %d paths, want %d", ErrInvalidScenario, j, len(col), paths)
		}
	}
	if paths == 0 {
		return nil, fmt.Errorf("%w: no paths", ErrInvalidScenario)
	}
	for j, p := range probabilities {
		if !(p >= 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: default probability %d is %v", ErrInvalidScenario, j, p)
		}
	}
	return &Static{paths: paths, exposures: exposures, probabilities: probabilities}, nil
}

func (s *Static) PathCount() int { return s.paths }
func (s *Static) IntervalCount() int { return len(s.probabilities) }

func (s *Static) Exposures(j int) []float64 {
	if j >= len(s.exposures) {
		return nil
	}
	return s.exposures[j]
}

func (s *Static) DefaultProbability(j int) float64 { return s.probabilities[j] }

// Collect gathers the loss-bearing exposure vectors and every default
// probability of a Provider. Exposure vectors are shared, not copied.
func Collect(p Provider) (exposures [][]float64, probabilities []float64) {
	m := p.IntervalCount()
	probabilities = make([]float64, m)
	for j := range probabilities {
		probabilities[j] = p.DefaultProbability(j)
	}
	if m == 0 {
		return nil, probabilities
	}
	exposures = make([][]float64, m-1)
	for j := range exposures {
		exposures[j] = p.Exposures(j)
	}
	return exposures, probabilities
}
