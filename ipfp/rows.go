package ipfp

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/wcva/coupling"
	"github.com/bcdannyboy/wcva/numerics"
)

// RowProjector rescales every row of a coupling to the uniform path mass 1/n
type RowProjector struct {
	pool      *Pool
	blockSize int
	tolerance float64
	policy    ZeroSumPolicy
}

func NewRowProjector(pool *Pool, blockSize int, tolerance float64, policy ZeroSumPolicy) *RowProjector {
	return &RowProjector{
		pool:      pool,
		blockSize: blockSize,
		tolerance: tolerance,
		policy:    policy,
	}
}

// Project reads src and writes the row-normalized coupling into dst. The
// returned flag is true when every row sum of src was already within the
// relative row tolerance of 1/n. Rows are split into contiguous blocks, one
// task per block; a block only ever writes its own rows of dst.
func (p *RowProjector) Project(src, dst *coupling.Matrix) (bool, error) {
	paths, intervals := src.Dims()
	in, out := src.Raw(), dst.Raw()
	target := 1 / float64(paths)

	blocks := partition(paths, p.blockSize)
	converged := make([]bool, len(blocks))
	tasks := make([]func() error, len(blocks))
	for b, blk := range blocks {
		b, blk := b, blk
		tasks[b] = func() error {
			ok := true
			var sum numerics.KahanSum
			for i := blk.lo; i < blk.hi; i++ {
				row := in[i*intervals : (i+1)*intervals]
				dest := out[i*intervals : (i+1)*intervals]

				sum.Reset()
				for _, v := range row {
					sum.Add(v)
				}
				s := sum.Value()

				if math.IsNaN(s) || math.IsInf(s, 0) {
					return fmt.Errorf("%w: row %d sums to %v", ErrNumericalInstability, i, s)
				}
				if s == 0 {
					if p.policy != ZeroSumUniform {
						return fmt.Errorf("%w: row %d", ErrDegenerateRow, i)
					}
					fill := target / float64(intervals)
					for j := range dest {
						dest[j] = fill
					}
					ok = false
					continue
				}

				if math.Abs(s-target)/target > p.tolerance {
					ok = false
				}
				for j, v := range row {
					dest[j] = v / s * target
				}
			}
			converged[b] = ok
			return nil
		}
	}

	if err := p.pool.Run(tasks); err != nil {
		return false, err
	}
	return allTrue(converged), nil
}

func allTrue(flags []bool) bool {
	for _, f := range flags {
		if !f {
			return false
		}
	}
	return true
}
