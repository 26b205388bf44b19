package dataflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPoolClosed is returned by futures submitted after Close.
var ErrPoolClosed = errors.New("dataflow: pool is closed")

// permanentError marks a task failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the pool resolves the future without retrying.
// The future carries err itself.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Task is a unit of work executed by a Pool worker.
type Task func(ctx context.Context) error

// Future is a handle over a submitted task. It is resolved exactly once.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

// Done returns a channel that is closed once the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task has finished and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

type job struct {
	task   Task
	future *Future
}

// Pool runs submitted tasks on a fixed set of workers.
// It is an explicit dependency: callers create it, share it, and Close it.
type Pool struct {
	cfg    *config
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool whose workers run until Close is called.
// Cancelling ctx aborts retry backoffs and is passed to every task.
func NewPool(ctx context.Context, opts ...Option) *Pool {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, cfg.bufferSize),
	}

	p.wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go p.worker()
	}
	return p
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.cfg.workers
}

// Submit queues fn and returns its Future. It blocks while the queue is full.
func (p *Pool) Submit(fn Task) *Future {
	f := newFuture()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		f.resolve(ErrPoolClosed)
		return f
	}

	select {
	case p.jobs <- job{task: fn, future: f}:
	case <-p.ctx.Done():
		f.resolve(p.ctx.Err())
	}
	return f
}

// Close stops accepting tasks and waits for queued tasks to finish.
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
	p.cancel()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		err := p.run(j.task)
		if err != nil {
			p.cfg.logger.Error().Err(err).Msg("dataflow: task failed")
		}
		j.future.resolve(err)
	}
}

// run executes the task with the configured retries.
func (p *Pool) run(fn Task) error {
	err := p.safeCall(fn)
	for i := 1; err != nil && i <= p.cfg.maxRetries; i++ {
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if p.cfg.backoff != nil {
			select {
			case <-p.ctx.Done():
				return err
			case <-time.After(p.cfg.backoff(i)):
			}
		}
		err = p.safeCall(fn)
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	return err
}

func (p *Pool) safeCall(fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dataflow: task panicked: %v", r)
		}
	}()
	return fn(p.ctx)
}

// WaitAll waits for every future and joins their errors.
func WaitAll(futures ...*Future) error {
	var errs []error
	for _, f := range futures {
		if err := f.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
