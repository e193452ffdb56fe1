package ipfp

import (
	"math"

	"github.com/bcdannyboy/wcva/coupling"
	"github.com/bcdannyboy/wcva/numerics"
)

// Objective evaluates Σ e·π − (1/λ)·KL(π ‖ μ⊗ν) for a coupling π with μ uniform
// over paths and ν the default probabilities. Cells with π = 0 contribute nothing
// to the divergence. A zero penalty returns the expected loss alone when π is the
// product measure and -Inf otherwise.
func Objective(c *coupling.Matrix, exposures [][]float64, probabilities []float64, penalty float64) float64 {
	paths, intervals := c.Dims()
	data := c.Raw()
	invPaths := 1 / float64(paths)

	var loss, divergence numerics.KahanSum
	for i := 0; i < paths; i++ {
		for j := 0; j < intervals; j++ {
			pi := data[i*intervals+j]
			if j < len(exposures) && j < intervals-1 {
				loss.Add(exposures[j][i] * pi)
			}
			if pi <= 0 {
				continue
			}
			ref := invPaths * probabilities[j]
			if ref == 0 {
				return math.Inf(-1)
			}
			divergence.Add(pi * math.Log(pi/ref))
		}
	}

	kl := divergence.Value()
	if penalty == 0 {
		if math.Abs(kl) <= 1e-12 {
			return loss.Value()
		}
		return math.Inf(-1)
	}
	return loss.Value() - kl/penalty
}
