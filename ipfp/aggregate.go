package ipfp

import (
	"github.com/bcdannyboy/wcva/coupling"
	"github.com/bcdannyboy/wcva/numerics"
)

// Aggregator computes the expected loss Σ_j Σ_i e[j][i]·π[i][j] over the loss-bearing columns
type Aggregator struct {
	pool *Pool
}

func NewAggregator(pool *Pool) *Aggregator {
	return &Aggregator{pool: pool}
}

// Aggregate computes one Kahan partial per exposure column in parallel, then
// reduces the partials in column order so repeated calls are bit-identical.
func (a *Aggregator) Aggregate(c *coupling.Matrix, exposures [][]float64) (float64, error) {
	_, intervals := c.Dims()
	data := c.Raw()

	partials := make([]float64, len(exposures))
	tasks := make([]func() error, len(exposures))
	for j, col := range exposures {
		j, col := j, col
		tasks[j] = func() error {
			var sum numerics.KahanSum
			for i, e := range col {
				sum.Add(e * data[i*intervals+j])
			}
			partials[j] = sum.Value()
			return nil
		}
	}

	if err := a.pool.Run(tasks); err != nil {
		return 0, err
	}
	return numerics.Sum(partials), nil
}
