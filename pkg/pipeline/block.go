package pipeline

import (
	"context"
	"sync"
)

// FaultHandler is a function type for fault handling
type FaultHandler func(error)

// Block tracks the lifecycle of one long-running goroutine: it completes once,
// faults at most once (the first error wins) and exposes both states to other
// goroutines without extra locking on the caller side.
type Block struct {
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	err            error
	errMutex       sync.RWMutex
	completion     chan struct{}
	completionOnce sync.Once
	faultOnce      sync.Once
	onFault        []FaultHandler
}

// NewBlock creates a Block whose context is derived from parent.
func NewBlock(parent context.Context) *Block {
	ctx, cancel := context.WithCancel(parent)
	return &Block{
		ctx:        ctx,
		cancel:     cancel,
		completion: make(chan struct{}),
	}
}

// Context returns the block's context. It is cancelled on Cancel and on Fault.
func (b *Block) Context() context.Context {
	return b.ctx
}

// OnFault registers a fault handler. Handlers must be registered before Go.
func (b *Block) OnFault(handler FaultHandler) {
	b.onFault = append(b.onFault, handler)
}

// Go runs fn on its own goroutine. A nil return completes the block,
// an error faults it.
func (b *Block) Go(fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := fn(b.ctx); err != nil {
			b.Fault(err)
			return
		}
		b.Complete()
	}()
}

// Complete marks the block as completed
func (b *Block) Complete() {
	b.completionOnce.Do(func() {
		close(b.completion)
	})
}

// Fault records err, cancels the context and completes the block.
// Only the first fault is kept.
func (b *Block) Fault(err error) {
	b.faultOnce.Do(func() {
		b.errMutex.Lock()
		b.err = err
		b.errMutex.Unlock()

		b.cancel()
		for _, h := range b.onFault {
			h(err)
		}
	})
	b.Complete()
}

// Cancel interrupts the running goroutine through its context.
func (b *Block) Cancel() {
	b.cancel()
}

// Completion returns a channel that's closed when the block completes
func (b *Block) Completion() <-chan struct{} {
	return b.completion
}

// Wait blocks until the goroutine started by Go has returned.
func (b *Block) Wait() error {
	<-b.completion
	b.wg.Wait()
	return b.Err()
}

// Err returns the fault, if any, without waiting.
func (b *Block) Err() error {
	b.errMutex.RLock()
	defer b.errMutex.RUnlock()
	return b.err
}

// IsCompleted returns true if the block has completed
func (b *Block) IsCompleted() bool {
	select {
	case <-b.completion:
		return true
	default:
		return false
	}
}
