package ipfp

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/cpu"
	"go.uber.org/multierr"
)

// AvailableCores returns the logical core count, falling back to the Go runtime's view
func AvailableCores() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// PoolSize is min(max(2*cores, 1), intervals): never more workers than
// default-probability columns and never fewer than one.
func PoolSize(cores, intervals int) int {
	size := 2 * cores
	if size < 1 {
		size = 1
	}
	if intervals >= 1 && size > intervals {
		size = intervals
	}
	return size
}

// span is a half-open index range [lo, hi) owned exclusively by one task
type span struct {
	lo, hi int
}

// partition splits [0, n) into ceil(n/size) contiguous spans
func partition(n, size int) []span {
	if n <= 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	spans := make([]span, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		spans = append(spans, span{lo: lo, hi: hi})
	}
	return spans
}

type job struct {
	index int
	fn    func() error
	phase *phase
}

// phase tracks one batch of tasks submitted through Run
type phase struct {
	wg  sync.WaitGroup
	mu  sync.Mutex
	err error
}

func (p *phase) fail(err error) {
	p.mu.Lock()
	p.err = multierr.Append(p.err, err)
	p.mu.Unlock()
}

// Pool is a fixed set of worker goroutines shared by every phase of one solve.
// Run is a barrier: it returns only after every submitted task has finished.
type Pool struct {
	workers int
	jobs    chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines; values below one start a single worker
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		workers: workers,
		jobs:    make(chan job, workers),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Workers returns the number of worker goroutines
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.run()
	}
}

func (j job) run() {
	defer j.phase.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			j.phase.fail(fmt.Errorf("%w: task %d panicked: %v", ErrTaskFailed, j.index, r))
		}
	}()
	if err := j.fn(); err != nil {
		j.phase.fail(err)
	}
}

// Run submits tasks and blocks until all of them complete. Errors from every
// failing task are combined; a panicking task is reported as ErrTaskFailed.
func (p *Pool) Run(tasks []func() error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	ph := &phase{}
	ph.wg.Add(len(tasks))
	for i, fn := range tasks {
		p.jobs <- job{index: i, fn: fn, phase: ph}
	}
	ph.wg.Wait()
	return ph.err
}

// Close stops the workers after queued work drains. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
