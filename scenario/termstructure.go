package scenario

import (
	"fmt"
	"math"
)

// TimeGrid returns k equally spaced interval end times on (0, horizon]
func TimeGrid(horizon float64, k int) ([]float64, error) {
	if !(horizon > 0) || math.IsInf(horizon, 0) {
		return nil, fmt.Errorf("%w: horizon must be finite and positive, got %v", ErrInvalidScenario, horizon)
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: negative interval count %d", ErrInvalidScenario, k)
	}
	times := make([]float64, k)
	for j := range times {
		times[j] = horizon * float64(j+1) / float64(k)
	}
	return times, nil
}

// DiscountFactors returns exp(-rate * t) for every t in times
func DiscountFactors(rate float64, times []float64) []float64 {
	out := make([]float64, len(times))
	for j, t := range times {
		out[j] = math.Exp(-rate * t)
	}
	return out
}

// WithTermStructure returns a copy of s priced on an equally spaced grid to
// horizon. A positive hazard replaces the default probabilities with those of
// FlatHazard; a positive discountRate floors and discounts the loss-bearing
// exposure vectors at the interval end times. Zero leaves the corresponding
// side of s as it is. s is not modified.
func WithTermStructure(s *Static, horizon, hazard, discountRate float64) (*Static, error) {
	if !(discountRate >= 0) || math.IsInf(discountRate, 0) {
		return nil, fmt.Errorf("%w: discount rate must be finite and non-negative, got %v", ErrInvalidScenario, discountRate)
	}
	m := s.IntervalCount()
	times, err := TimeGrid(horizon, m-1)
	if err != nil {
		return nil, err
	}

	probabilities := s.probabilities
	if hazard != 0 {
		if probabilities, err = FlatHazard(hazard, times); err != nil {
			return nil, err
		}
	}

	exposures := s.exposures
	if discountRate > 0 && m > 1 {
		if exposures, err = FloorAndDiscount(s.exposures[:m-1], DiscountFactors(discountRate, times)); err != nil {
			return nil, err
		}
	}
	return NewStatic(exposures, probabilities)
}
