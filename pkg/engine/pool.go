package engine

import (
	"sync"

	"go.uber.org/zap"
)

var (
	defaultNumWorkers   uint = 3
	defaultTaskQueueLen uint = 64
)

// pool runs blocking persistence and pipeline work off the caller's path.
// It is shared across all users; per-call timeouts bound how long a caller
// waits for a task, not how long the task runs.
type pool struct {
	queue  chan func()
	wg     sync.WaitGroup
	logger *zap.Logger
}

// newPool starts numWorkers goroutines consuming the task queue.
func newPool(numWorkers, queueLen uint, logger *zap.Logger) *pool {
	if numWorkers == 0 {
		numWorkers = defaultNumWorkers
	}
	if queueLen == 0 {
		queueLen = defaultTaskQueueLen
	}

	p := &pool{
		queue:  make(chan func(), queueLen),
		logger: logger,
	}

	p.wg.Add(int(numWorkers))
	for i := range numWorkers {
		go p.worker(i)
	}

	return p
}

// submit enqueues a task without blocking. Returns false when the queue is
// full; the caller degrades instead of waiting.
func (p *pool) submit(task func()) bool {
	select {
	case p.queue <- task:
		return true
	default:
		p.logger.Warn("worker queue full, task dropped")
		return false
	}
}

// close stops accepting tasks and waits for in-flight work to drain.
func (p *pool) close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for task := range p.queue {
		task()
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}
