// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Task is one unit of work run by the pool.
type Task func(ctx context.Context) error

type item struct {
	task Task
	b    *Batch
}

// Pool runs tasks on a fixed number of goroutines. Callers group their tasks
// in a Batch; batches sharing a pool never wait on each other's tasks.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan item
	quit chan struct{}
	n    int
	log  *zerolog.Logger

	// sendMu is held for reading by senders; Stop takes it to know no send
	// is in flight before the final drain.
	sendMu  sync.RWMutex
	stopped bool
	// ctxDone is the Start context's Done channel.
	ctxDone <-chan struct{}
}

var ErrPoolStopped = errors.New("worker pool stopped")

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "worker_pool").Logger()
	return &Pool{jobs: make(chan item, workers*4), quit: make(chan struct{}), n: workers, log: &l}
}

// Start launches the workers. Once ctx is done the pool refuses new tasks and
// fails the ones still queued.
func (p *Pool) Start(ctx context.Context) {
	p.ctxDone = ctx.Done()
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					p.drain(ctx.Err())
					return
				case <-p.quit:
					return
				case it := <-p.jobs:
					p.run(ctx, id, it)
				}
			}
		}(i)
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-p.quit:
			return
		}
		p.closeSends()
		p.wg.Wait()
		p.drain(ctx.Err())
	}()
}

func (p *Pool) run(ctx context.Context, id int, it item) {
	err := it.task(ctx)
	if err != nil {
		p.log.Debug().Err(err).Int("worker", id).Msg("task error")
	}
	it.b.done(err)
}

// drain fails tasks still queued after cancellation so their batches return.
func (p *Pool) drain(cause error) {
	for {
		select {
		case it := <-p.jobs:
			it.b.done(cause)
		default:
			return
		}
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.closeSends()
	p.wg.Wait()
	p.drain(ErrPoolStopped)
}

// closeSends returns once no Submit is mid-send; later ones are refused.
func (p *Pool) closeSends() {
	p.sendMu.Lock()
	p.stopped = true
	p.sendMu.Unlock()
}

// Batch starts a group of tasks whose completion and errors are tracked
// together.
func (p *Pool) Batch() *Batch {
	return &Batch{p: p}
}

// Batch is a set of tasks submitted to one pool. It is not reusable after
// Wait returns.
type Batch struct {
	p  *Pool
	wg sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// Submit queues a task, waiting for room until ctx is done. A ctx that is
// already done never enqueues.
func (b *Batch) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.p.sendMu.RLock()
	defer b.p.sendMu.RUnlock()
	if b.p.stopped {
		return ErrPoolStopped
	}
	select {
	case <-b.p.quit:
		return ErrPoolStopped
	default:
	}
	b.wg.Add(1)
	select {
	case b.p.jobs <- item{task: task, b: b}:
		return nil
	case <-ctx.Done():
		b.wg.Done()
		return ctx.Err()
	case <-b.p.quit:
		b.wg.Done()
		return ErrPoolStopped
	case <-b.p.ctxDone:
		b.wg.Done()
		return ErrPoolStopped
	}
}

func (b *Batch) done(err error) {
	if err != nil {
		b.mu.Lock()
		b.errs = append(b.errs, err)
		b.mu.Unlock()
	}
	b.wg.Done()
}

// Wait blocks until every task of this batch returned and joins their errors.
func (b *Batch) Wait() error {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.errs...)
}
