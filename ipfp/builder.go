package ipfp

import (
	"math"

	"github.com/bcdannyboy/wcva/coupling"
	"gonum.org/v1/gonum/floats"
)

// maxExponent is the largest x for which exp(x) is a finite float64, rounded down
const maxExponent = 709.0

// RescaleShift returns the exponent shift keeping exp(penalty*exposure - shift)/n
// within float64 range for the largest exposure: max(0, penalty*maxExposure - (709 - ln n)).
func RescaleShift(penalty, maxExposure float64, paths int) float64 {
	return math.Max(0, penalty*maxExposure-(maxExponent-math.Log(float64(paths))))
}

// MaxExposure returns the largest exposure across the loss-bearing columns, or 0 when there are none
func MaxExposure(exposures [][]float64) float64 {
	largest := 0.0
	for _, col := range exposures {
		if len(col) == 0 {
			continue
		}
		if v := floats.Max(col); v > largest {
			largest = v
		}
	}
	return largest
}

// Builder populates the exponentially tilted starting coupling
type Builder struct {
	pool           *Pool
	disableRescale bool
}

func NewBuilder(pool *Pool, disableRescale bool) *Builder {
	return &Builder{pool: pool, disableRescale: disableRescale}
}

// Build writes A[i][j] = exp(penalty*exposures[j][i] - shift) * (1/n) * probabilities[j]
// into dst, one task per column, and returns the shift applied. The last column is the
// no-default interval: its exposure is zero and no exposure vector is read for it.
func (b *Builder) Build(exposures [][]float64, probabilities []float64, penalty float64, dst *coupling.Matrix) (float64, error) {
	paths, intervals := dst.Dims()

	shift := 0.0
	if !b.disableRescale {
		shift = RescaleShift(penalty, MaxExposure(exposures[:intervals-1]), paths)
	}

	data := dst.Raw()
	invPaths := 1 / float64(paths)

	tasks := make([]func() error, intervals)
	for j := 0; j < intervals; j++ {
		j := j
		weight := invPaths * probabilities[j]
		if j == intervals-1 {
			tasks[j] = func() error {
				v := math.Exp(-shift) * weight
				for idx := j; idx < len(data); idx += intervals {
					data[idx] = v
				}
				return nil
			}
			continue
		}
		col := exposures[j]
		tasks[j] = func() error {
			for i, e := range col {
				data[i*intervals+j] = math.Exp(penalty*e-shift) * weight
			}
			return nil
		}
	}

	if err := b.pool.Run(tasks); err != nil {
		return shift, err
	}
	return shift, nil
}
