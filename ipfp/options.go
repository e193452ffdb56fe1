package ipfp

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

const (
	DefaultRowTolerance            = 1e-7
	DefaultColumnRelativeTolerance = 1e-7
	DefaultColumnAbsoluteTolerance = 1e-11
	DefaultMaxIterations           = 100
	DefaultBlockSize               = 10000
)

// Tolerances are the convergence thresholds of the row and column passes
type Tolerances struct {
	Row            float64 // relative deviation of a row sum from 1/n
	ColumnRelative float64 // relative deviation of a column sum from a positive target
	ColumnAbsolute float64 // absolute deviation of a column sum when the target is zero
}

// DefaultTolerances returns 1e-7, 1e-7 and 1e-11
func DefaultTolerances() Tolerances {
	return Tolerances{
		Row:            DefaultRowTolerance,
		ColumnRelative: DefaultColumnRelativeTolerance,
		ColumnAbsolute: DefaultColumnAbsoluteTolerance,
	}
}

func (t Tolerances) Validate() error {
	for name, v := range map[string]float64{
		"row":             t.Row,
		"column relative": t.ColumnRelative,
		"column absolute": t.ColumnAbsolute,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s tolerance must be positive and finite, got %v", ErrInvalidOptions, name, v)
		}
	}
	return nil
}

// ZeroSumPolicy decides what a projection does with a row or column whose
// weights have all underflowed to zero while its target mass is positive.
type ZeroSumPolicy int

const (
	// ZeroSumFail aborts the computation with ErrDegenerateRow or ErrDegenerateColumn
	ZeroSumFail ZeroSumPolicy = iota
	// ZeroSumUniform spreads the target mass evenly over the row or column
	ZeroSumUniform
)

func (p ZeroSumPolicy) String() string {
	switch p {
	case ZeroSumFail:
		return "fail"
	case ZeroSumUniform:
		return "uniform"
	default:
		return fmt.Sprintf("ZeroSumPolicy(%d)", int(p))
	}
}

// ParseZeroSumPolicy maps "fail" and "uniform" to their policies
func ParseZeroSumPolicy(s string) (ZeroSumPolicy, error) {
	switch s {
	case "", "fail":
		return ZeroSumFail, nil
	case "uniform":
		return ZeroSumUniform, nil
	default:
		return ZeroSumFail, fmt.Errorf("%w: unknown zero-sum policy %q", ErrInvalidOptions, s)
	}
}

// IterationReport is handed to Options.OnIteration after every row+column pass
type IterationReport struct {
	Iteration        int
	RowsConverged    bool
	ColumnsConverged bool
	Status           Status
}

// Options tune a single IPFP solve. The zero value is not usable; start from DefaultOptions.
type Options struct {
	Tolerances    Tolerances
	MaxIterations int
	// BlockSize is the number of contiguous rows handled by one row-projection task
	BlockSize int
	// Workers overrides the pool size when positive; zero sizes the pool from the core count
	Workers int
	// DisableRescale turns off the exponent shift guarding exp() against overflow
	DisableRescale bool
	ZeroSum        ZeroSumPolicy
	// RequireConvergence makes Solve return ErrNotConverged when the budget runs out
	RequireConvergence bool
	Logger             *zap.Logger
	OnIteration        func(IterationReport)
}

// DefaultOptions returns the reference configuration: default tolerances,
// 100 iterations, 10000-row blocks, automatic pool size and rescaling enabled
func DefaultOptions() Options {
	return Options{
		Tolerances:    DefaultTolerances(),
		MaxIterations: DefaultMaxIterations,
		BlockSize:     DefaultBlockSize,
		ZeroSum:       ZeroSumFail,
	}
}

// Validate reports unusable tolerances, caps, block sizes, pool sizes or policies
func (o Options) Validate() error {
	if err := o.Tolerances.Validate(); err != nil {
		return err
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidOptions, o.MaxIterations)
	}
	if o.BlockSize < 1 {
		return fmt.Errorf("%w: block size must be at least 1, got %d", ErrInvalidOptions, o.BlockSize)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOptions, o.Workers)
	}
	if o.ZeroSum != ZeroSumFail && o.ZeroSum != ZeroSumUniform {
		return fmt.Errorf("%w: unknown zero-sum policy %d", ErrInvalidOptions, int(o.ZeroSum))
	}
	return nil
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
