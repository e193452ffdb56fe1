package ipfp

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/wcva/coupling"
	"github.com/bcdannyboy/wcva/numerics"
)

// ColumnProjector rescales every column of a coupling to its default probability
type ColumnProjector struct {
	pool       *Pool
	tolerances Tolerances
	policy     ZeroSumPolicy
}

func NewColumnProjector(pool *Pool, tolerances Tolerances, policy ZeroSumPolicy) *ColumnProjector {
	return &ColumnProjector{
		pool:       pool,
		tolerances: tolerances,
		policy:     policy,
	}
}

// Project reads src and writes the column-normalized coupling into dst, one
// task per column. The returned flag is true when every column sum of src was
// within tolerance of its target: relative for positive targets, absolute for
// zero targets. A zero-target column is written as zeros.
func (p *ColumnProjector) Project(src, dst *coupling.Matrix, probabilities []float64) (bool, error) {
	_, intervals := src.Dims()
	in, out := src.Raw(), dst.Raw()

	converged := make([]bool, intervals)
	tasks := make([]func() error, intervals)
	for j := 0; j < intervals; j++ {
		j := j
		target := probabilities[j]
		tasks[j] = func() error {
			var sum numerics.KahanSum
			for idx := j; idx < len(in); idx += intervals {
				sum.Add(in[idx])
			}
			s := sum.Value()

			if math.IsNaN(s) || math.IsInf(s, 0) {
				return fmt.Errorf("%w: column %d sums to %v", ErrNumericalInstability, j, s)
			}

			if target == 0 {
				converged[j] = math.Abs(s) <= p.tolerances.ColumnAbsolute
				for idx := j; idx < len(out); idx += intervals {
					out[idx] = 0
				}
				return nil
			}

			if s == 0 {
				if p.policy != ZeroSumUniform {
					return fmt.Errorf("%w: column %d with target %v", ErrDegenerateColumn, j, target)
				}
				paths := len(in) / intervals
				fill := target / float64(paths)
				for idx := j; idx < len(out); idx += intervals {
					out[idx] = fill
				}
				converged[j] = false
				return nil
			}

			converged[j] = math.Abs(s-target)/target <= p.tolerances.ColumnRelative
			scale := target / s
			for idx := j; idx < len(out); idx += intervals {
				out[idx] = in[idx] * scale
			}
			return nil
		}
	}

	if err := p.pool.Run(tasks); err != nil {
		return false, err
	}
	return allTrue(converged), nil
}
