// Package server contains the serving core: the reactor accepting and
// pumping connections, the bounded worker pool executing request
// handlers, and the dispatcher translating frames into engine calls.
package server

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/qianzhou/goso/pkg/metrics"
)

// Task is one unit of work for the pool.
type Task func()

// ErrPoolClosed is returned by Submit after shutdown began.
var ErrPoolClosed = fmt.Errorf("worker pool closed")

// Pool is a bounded FIFO worker pool. Submit blocks while the queue is
// full, back-pressuring the caller.
type Pool struct {
	tasks   chan Task
	quit    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPool creates a pool with the given worker count and queue capacity.
// m may be nil.
func NewPool(workers, queueSize int, m *metrics.Metrics) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	p := &Pool{
		tasks:   make(chan Task, queueSize),
		quit:    make(chan struct{}),
		metrics: m,
		logger:  slog.Default().With("component", "worker-pool"),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "workers", workers, "queue_size", queueSize)
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if p.metrics != nil {
				p.metrics.QueueDepth.Set(float64(len(p.tasks)))
			}
			p.run(id, task)
		}
	}
}

// run executes one task, containing any panic inside the worker.
func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}

// Submit enqueues a task, blocking while the queue is full. It returns
// ErrPoolClosed once shutdown has begun.
func (p *Pool) Submit(task Task) error {
	// the mutex is held across the send so Shutdown cannot close the
	// channel between the closed check and the enqueue
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
	case <-p.quit:
		return ErrPoolClosed
	}
	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(len(p.tasks)))
	}
	return nil
}

// Shutdown stops accepting tasks, lets queued tasks run, and joins the
// workers.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("worker pool drained")
}

// ForceShutdown discards queued tasks and joins the workers immediately.
func (p *Pool) ForceShutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.quit)
	dropped := 0
	for {
		select {
		case <-p.tasks:
			dropped++
		default:
			p.mu.Unlock()
			p.wg.Wait()
			if dropped > 0 && p.metrics != nil {
				p.metrics.TasksDropped.Add(float64(dropped))
			}
			p.logger.Info("worker pool force-stopped", "dropped", dropped)
			return
		}
	}
}
