// Package tasks runs fire-and-forget work on a fixed set of workers fed by a
// bounded queue. Submitters never block and never observe the outcome.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vovarama1992/support-relay/internal/logger"
)

const (
	DefaultWorkers      = 4
	DefaultQueueSize    = 256
	DefaultDrainTimeout = 30 * time.Second
)

type Func func(ctx context.Context)

type task struct {
	name string
	fn   Func
}

type Pool struct {
	queue chan task
	wg    sync.WaitGroup
	log   *logger.Logger

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	dropped   atomic.Int64
	panicked  atomic.Int64
}

func NewPool(workers, queueSize int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}
	p := &Pool{
		queue: make(chan task, queueSize),
		log:   log.With("component", "tasks"),
	}
	p.log.Info("starting task pool", "workers", workers, "queue_size", queueSize)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.runLoop(i + 1)
	}
	return p
}

// Submit enqueues fn. It reports false when the queue is full or the pool is
// shut down; the task is then dropped and logged.
func (p *Pool) Submit(name string, fn Func) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		p.log.Warn("task dropped, pool closed", "task", name)
		return false
	}
	select {
	case p.queue <- task{name: name, fn: fn}:
		p.submitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		p.log.Warn("task dropped, queue full", "task", name, "queue_size", cap(p.queue))
		return false
	}
}

func (p *Pool) runLoop(workerID int) {
	defer p.wg.Done()
	for t := range p.queue {
		p.execute(workerID, t)
	}
}

func (p *Pool) execute(workerID int, t task) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.log.Error("task panic", "worker_id", workerID, "task", t.name, "panic", fmt.Sprint(r))
		}
	}()
	t.fn(context.Background())
}

// Shutdown stops accepting work and waits for queued tasks to finish or for
// ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("task pool drained", "submitted", p.submitted.Load(), "dropped", p.dropped.Load())
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task pool drain: %w", ctx.Err())
	}
}

// Run blocks until ctx ends, then drains with DefaultDrainTimeout.
func (p *Pool) Run(ctx context.Context) error {
	<-ctx.Done()
	drainCtx, cancel := context.WithTimeout(context.Background(), DefaultDrainTimeout)
	defer cancel()
	return p.Shutdown(drainCtx)
}

type Stats struct {
	Submitted int64
	Dropped   int64
	Panicked  int64
	Queued    int
}

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Dropped:   p.dropped.Load(),
		Panicked:  p.panicked.Load(),
		Queued:    len(p.queue),
	}
}
