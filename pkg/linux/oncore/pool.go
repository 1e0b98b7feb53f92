package oncore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/softdevteam/msrsampler/pkg/linux/msr"
	"github.com/softdevteam/msrsampler/pkg/xlog"
)

var (
	ErrNoSuchCore = errors.New("no such core")
	ErrClosed     = errors.New("dispatcher is closed")
)

////////////////////////////////////////////////////////////////////////////////

// Dispatcher runs functions on a specific core and waits for them to finish.
type Dispatcher interface {
	// RunOnCore blocks until fn has run to completion on the core.
	// There is no timeout: a hung core blocks the caller forever.
	RunOnCore(core int, fn func(acc msr.Accessor)) error

	NumCores() int

	Close() error
}

// Run hands the payload to fn on the target core. The payload is owned by the
// target core until Run returns and by the caller afterwards.
func Run[P any](d Dispatcher, core int, fn func(acc msr.Accessor, payload *P), payload *P) error {
	return d.RunOnCore(core, func(acc msr.Accessor) {
		fn(acc, payload)
	})
}

////////////////////////////////////////////////////////////////////////////////

type AccessorFactory func(core int) (msr.Accessor, error)

type Options struct {
	// Opens the register accessor for a core. Called on the worker thread
	// after it has been pinned. msr.OpenDevice by default.
	Open AccessorFactory

	// Pin worker threads to their cores. Disable for software stand-ins.
	Pin bool
}

func DefaultOptions() Options {
	return Options{
		Open: func(core int) (msr.Accessor, error) {
			return msr.OpenDevice(core)
		},
		Pin: true,
	}
}

type request struct {
	fn   func(acc msr.Accessor)
	done chan struct{}
}

type worker struct {
	core  int
	queue chan request
	acc   msr.Accessor
}

// Pool keeps one worker per core. Each worker locks itself to an OS thread
// pinned to its core and owns the core's register accessor.
type Pool struct {
	logger  xlog.Logger
	workers []*worker

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Dispatcher = (*Pool)(nil)

func NewPool(ctx context.Context, l xlog.Logger, cores int, opts Options) (*Pool, error) {
	if cores <= 0 {
		return nil, fmt.Errorf("invalid number of cores %d", cores)
	}
	if opts.Open == nil {
		opts.Open = DefaultOptions().Open
	}

	p := &Pool{
		logger:  l.WithName("oncore"),
		workers: make([]*worker, 0, cores),
	}

	for core := 0; core < cores; core++ {
		w := &worker{core: core, queue: make(chan request)}
		started := make(chan error, 1)

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.serve(w, opts, started)
		}()

		if err := <-started; err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to start worker for core %d: %w", core, err)
		}
		p.workers = append(p.workers, w)
	}

	p.logger.Debug(ctx, "Started per-core workers", zap.Int("cores", cores), zap.Bool("pinned", opts.Pin))

	return p, nil
}

func (p *Pool) serve(w *worker, opts Options, started chan<- error) {
	// The thread is never unlocked: once its affinity has been changed it
	// must not be handed back to the scheduler.
	runtime.LockOSThread()

	if opts.Pin {
		var set unix.CPUSet
		set.Set(w.core)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			started <- fmt.Errorf("failed to set affinity: %w", err)
			return
		}
	}

	acc, err := opts.Open(w.core)
	if err != nil {
		started <- err
		return
	}
	w.acc = acc
	started <- nil

	for req := range w.queue {
		req.fn(w.acc)
		close(req.done)
	}
}

func (p *Pool) NumCores() int {
	return len(p.workers)
}

func (p *Pool) RunOnCore(core int, fn func(acc msr.Accessor)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	if core < 0 || core >= len(p.workers) {
		return fmt.Errorf("%w: %d (have %d)", ErrNoSuchCore, core, len(p.workers))
	}

	req := request{fn: fn, done: make(chan struct{})}
	p.workers[core].queue <- req
	<-req.done

	return nil
}

// Close waits for in-flight invocations, stops the workers and closes their accessors.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, w := range p.workers {
		close(w.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()

	errs := make([]error, 0, len(p.workers))
	for _, w := range p.workers {
		errs = append(errs, w.acc.Close())
	}
	return errors.Join(errs...)
}
