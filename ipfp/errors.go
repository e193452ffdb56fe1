package ipfp

import "errors"

var (
	// ErrInvalidInput reports a malformed problem: bad shapes, negative or non-finite values
	ErrInvalidInput = errors.New("ipfp: invalid input")
	// ErrInvalidOptions reports unusable tolerances, iteration caps, block or pool sizes
	ErrInvalidOptions = errors.New("ipfp: invalid options")

	ErrDegenerateRow        = errors.New("ipfp: row sum is zero")
	ErrDegenerateColumn     = errors.New("ipfp: column sum is zero")
	ErrNumericalInstability = errors.New("ipfp: non-finite marginal sum")

	// ErrTaskFailed wraps a panic recovered from a pool task
	ErrTaskFailed = errors.New("ipfp: task failed")
	ErrPoolClosed = errors.New("ipfp: pool is closed")

	// ErrNotConverged is returned alongside a best-effort solution when
	// Options.RequireConvergence is set and the iteration budget runs out
	ErrNotConverged = errors.New("ipfp: iteration budget exhausted before convergence")
)
