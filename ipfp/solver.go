package ipfp

import (
	"errors"
	"fmt"
	"math"

	"github.com/bcdannyboy/wcva/coupling"
	"github.com/bcdannyboy/wcva/numerics"
	"go.uber.org/zap"
)

// probabilityMassTolerance bounds |Σp − 1| before a warning is logged
const probabilityMassTolerance = 1e-9

// Problem is one worst-case expected loss computation.
//
// DefaultProbabilities has one entry per interval; the last interval means
// "no default within the horizon". Exposures[j][i] is the discounted floored
// exposure of path i when default falls in interval j, for every interval but
// the last. A trailing exposure vector for the last interval is accepted and
// ignored.
type Problem struct {
	Exposures            [][]float64
	DefaultProbabilities []float64
	Paths                int
	PenaltyFactor        float64
}

// Solution carries the expected loss under the worst-case coupling along with
// how the iteration ended. Coupling is owned by the caller after Solve returns.
type Solution struct {
	Coupling         *coupling.Matrix
	ExpectedLoss     float64
	Status           Status
	Iterations       int
	Rescale          float64
	Workers          int
	RowsConverged    bool
	ColumnsConverged bool
}

// Validate checks shapes and value domains without allocating the coupling
func (p Problem) Validate() error {
	if p.Paths <= 0 {
		return fmt.Errorf("%w: path count must be positive, got %d", ErrInvalidInput, p.Paths)
	}
	m := len(p.DefaultProbabilities)
	if m < 1 {
		return fmt.Errorf("%w: at least one interval is required", ErrInvalidInput)
	}
	if len(p.Exposures) != m-1 && len(p.Exposures) != m {
		return fmt.Errorf("%w: %d exposure vectors for %d intervals", ErrInvalidInput, len(p.Exposures), m)
	}
	for j, q := range p.DefaultProbabilities {
		if !(q >= 0) || math.IsInf(q, 0) {
			return fmt.Errorf("%w: default probability %d is %v", ErrInvalidInput, j, q)
		}
	}
	for j, col := range p.Exposures[:min(len(p.Exposures), m-1)] {
		if len(col) != p.Paths {
			return fmt.Errorf("%w: exposure vector %d has %d paths, want %d", ErrInvalidInput, j, len(col), p.Paths)
		}
		for i, e := range col {
			if !(e >= 0) || math.IsInf(e, 0) {
				return fmt.Errorf("%w: exposure [%d][%d] is %v", ErrInvalidInput, j, i, e)
			}
		}
	}
	if !(p.PenaltyFactor >= 0) || math.IsInf(p.PenaltyFactor, 0) {
		return fmt.Errorf("%w: penalty factor must be finite and non-negative, got %v", ErrInvalidInput, p.PenaltyFactor)
	}
	return nil
}

// Solve runs IPFP from the exponentially tilted product measure until both
// marginals are matched or the iteration budget runs out.
//
// Exhausting the budget is not an error unless opts.RequireConvergence is set,
// in which case the best-effort solution is returned alongside ErrNotConverged.
func Solve(problem Problem, opts Options) (*Solution, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	log := opts.logger()

	paths, intervals := problem.Paths, len(problem.DefaultProbabilities)
	exposures := problem.Exposures[:intervals-1]
	probabilities := problem.DefaultProbabilities

	if mass := numerics.Sum(probabilities); math.Abs(mass-1) > probabilityMassTolerance {
		log.Warn("default probabilities do not sum to one",
			zap.Float64("mass", mass),
			zap.Int("intervals", intervals),
		)
	}

	current, err := coupling.New(paths, intervals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	next, err := coupling.New(paths, intervals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	workers := opts.Workers
	if workers == 0 {
		workers = PoolSize(AvailableCores(), intervals)
	}
	pool := NewPool(workers)
	defer pool.Close()

	shift, err := NewBuilder(pool, opts.DisableRescale).Build(exposures, probabilities, problem.PenaltyFactor, current)
	if err != nil {
		return nil, err
	}
	if shift > 0 {
		log.Debug("rescaling initial coupling", zap.Float64("shift", shift))
	}

	rows := NewRowProjector(pool, opts.BlockSize, opts.Tolerances.Row, opts.ZeroSum)
	cols := NewColumnProjector(pool, opts.Tolerances, opts.ZeroSum)
	monitor := NewMonitor(opts.MaxIterations)

	var rowsOK, colsOK bool
	for !monitor.Done() {
		if rowsOK, err = rows.Project(current, next); err != nil {
			return nil, fmt.Errorf("row pass %d: %w", monitor.Iterations()+1, err)
		}
		if colsOK, err = cols.Project(next, current, probabilities); err != nil {
			return nil, fmt.Errorf("column pass %d: %w", monitor.Iterations()+1, err)
		}
		status := monitor.Observe(rowsOK, colsOK)

		log.Debug("ipfp iteration",
			zap.Int("iteration", monitor.Iterations()),
			zap.Bool("rows_converged", rowsOK),
			zap.Bool("columns_converged", colsOK),
		)
		if opts.OnIteration != nil {
			opts.OnIteration(IterationReport{
				Iteration:        monitor.Iterations(),
				RowsConverged:    rowsOK,
				ColumnsConverged: colsOK,
				Status:           status,
			})
		}
	}

	loss, err := NewAggregator(pool).Aggregate(current, exposures)
	if err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}

	sol := &Solution{
		Coupling:         current,
		ExpectedLoss:     loss,
		Status:           monitor.State(),
		Iterations:       monitor.Iterations(),
		Rescale:          shift,
		Workers:          pool.Workers(),
		RowsConverged:    rowsOK,
		ColumnsConverged: colsOK,
	}

	if sol.Status == BudgetExhausted {
		log.Warn("ipfp iteration budget exhausted",
			zap.Int("max_iterations", opts.MaxIterations),
			zap.Bool("rows_converged", rowsOK),
			zap.Bool("columns_converged", colsOK),
		)
	}
	log.Info("ipfp solve complete",
		zap.Stringer("status", sol.Status),
		zap.Int("iterations", sol.Iterations),
		zap.Float64("rescale", sol.Rescale),
		zap.Int("workers", sol.Workers),
		zap.Float64("expected_loss", sol.ExpectedLoss),
	)

	if sol.Status != Converged && opts.RequireConvergence {
		return sol, fmt.Errorf("%w after %d iterations", ErrNotConverged, sol.Iterations)
	}
	return sol, nil
}

// IsDegenerate reports whether err stems from a zero row or column sum
func IsDegenerate(err error) bool {
	return errors.Is(err, ErrDegenerateRow) || errors.Is(err, ErrDegenerateColumn)
}
