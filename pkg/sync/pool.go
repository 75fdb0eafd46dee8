package sync

import (
	"context"
	"fmt"
	"sync"
)

// Task is one unit of reconciliation work, usually a single store
// mutation.
type Task func(ctx context.Context) error

// Pool runs tasks with bounded concurrency. Slots are handed out by a
// semaphore channel, so Submit blocks once the pool is at capacity.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc

	wg  sync.WaitGroup
	sem chan struct{}

	mu        sync.Mutex
	firstErr  error
	processed int
	failed    int
}

// PoolStats holds a snapshot of pool counters
type PoolStats struct {
	Active    int
	Processed int
	Failed    int
}

// NewPool creates a pool running at most maxWorkers tasks at once.
// Tasks observe cancellation of the given context.
func NewPool(ctx context.Context, maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, maxWorkers),
	}
}

// Submit queues a task for execution. Blocks while the pool is at
// capacity until a slot opens. The name appears in the pool error
// when the task fails.
func (p *Pool) Submit(name string, task Task) {
	// Increment before acquiring the semaphore so Wait observes the task
	p.wg.Add(1)
	p.sem <- struct{}{}

	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()

		err := task(p.ctx)

		p.mu.Lock()
		p.processed++
		if err != nil {
			p.failed++
			if p.firstErr == nil {
				p.firstErr = fmt.Errorf("%s: %w", name, err)
			}
		}
		p.mu.Unlock()
	}()
}

// Wait blocks until every submitted task has finished and returns the
// first error encountered. The pool accepts no further tasks after
// Wait returns.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

// Shutdown cancels in-flight tasks and waits for them to return,
// bounded by the given context.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool shutdown timeout: %w", ctx.Err())
	}
}

// Stats returns current pool counters
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Active:    len(p.sem),
		Processed: p.processed,
		Failed:    p.failed,
	}
}
