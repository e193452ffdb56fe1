package coupling

import (
	"errors"
	"fmt"
	"math"

	"github.com/bcdannyboy/wcva/numerics"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidShape    = errors.New("coupling: rows and columns must be positive")
	ErrIndexOutOfRange = errors.New("coupling: index out of range")
)

// Matrix is a dense paths x intervals array of non-negative weights read as a
// joint probability mass over (path, default interval). Storage is a gonum
// mat.Dense in row-major order: element [i, j] lives at data[i*cols+j].
type Matrix struct {
	dense *mat.Dense
	rows  int
	cols  int
	data  []float64
}

// New allocates a zeroed rows x cols coupling matrix
func New(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: got %d x %d", ErrInvalidShape, rows, cols)
	}
	return wrap(mat.NewDense(rows, cols, nil)), nil
}

func wrap(d *mat.Dense) *Matrix {
	raw := d.RawMatrix()
	return &Matrix{
		dense: d,
		rows:  raw.Rows,
		cols:  raw.Cols,
		data:  raw.Data,
	}
}

// Dims returns the number of paths (rows) and intervals (columns)
func (m *Matrix) Dims() (int, int) {
	return m.rows, m.cols
}

// At returns the [i, j]-th weight
func (m *Matrix) At(i, j int) float64 {
	m.check(i, j)
	return m.data[i*m.cols+j]
}

// Set stores v as the [i, j]-th weight
func (m *Matrix) Set(i, j int, v float64) {
	m.check(i, j)
	m.data[i*m.cols+j] = v
}

func (m *Matrix) check(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(ErrIndexOutOfRange)
	}
}

// Row returns row i as a slice sharing storage with the matrix.
// Writes through the slice update the matrix.
func (m *Matrix) Row(i int) []float64 {
	if i < 0 || i >= m.rows {
		panic(ErrIndexOutOfRange)
	}
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// Raw exposes the row-major backing slice; the stride equals the column count.
// Projection kernels use it to walk a column without per-element bounds checks.
func (m *Matrix) Raw() []float64 {
	return m.data
}

// RowSum returns the compensated sum of row i
func (m *Matrix) RowSum(i int) float64 {
	return numerics.Sum(m.Row(i))
}

// ColumnSum returns the compensated sum of column j
func (m *Matrix) ColumnSum(j int) float64 {
	if j < 0 || j >= m.cols {
		panic(ErrIndexOutOfRange)
	}
	var k numerics.KahanSum
	for idx := j; idx < len(m.data); idx += m.cols {
		k.Add(m.data[idx])
	}
	return k.Value()
}

// RowSums returns the path marginal of the coupling
func (m *Matrix) RowSums() []float64 {
	sums := make([]float64, m.rows)
	for i := range sums {
		sums[i] = m.RowSum(i)
	}
	return sums
}

// ColumnSums returns the default-interval marginal of the coupling
func (m *Matrix) ColumnSums() []float64 {
	sums := make([]float64, m.cols)
	for j := range sums {
		sums[j] = m.ColumnSum(j)
	}
	return sums
}

// MarginalErrors returns the largest absolute deviation of the row sums from
// the uniform path weight 1/rows and of the column sums from probabilities.
func (m *Matrix) MarginalErrors(probabilities []float64) (rowErr, colErr float64, err error) {
	if len(probabilities) != m.cols {
		return 0, 0, fmt.Errorf("%w: %d probabilities for %d columns", ErrInvalidShape, len(probabilities), m.cols)
	}
	uniform := make([]float64, m.rows)
	for i := range uniform {
		uniform[i] = 1 / float64(m.rows)
	}
	rowErr = floats.Distance(m.RowSums(), uniform, math.Inf(1))
	colErr = floats.Distance(m.ColumnSums(), probabilities, math.Inf(1))
	return rowErr, colErr, nil
}

// View returns the coupling as a gonum matrix for reporting and plotting layers.
// The view shares storage; callers must not mutate it.
func (m *Matrix) View() mat.Matrix {
	return m.dense
}
