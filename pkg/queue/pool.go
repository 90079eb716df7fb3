package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PoolHealth aggregates every worker's health for the /health endpoint.
type PoolHealth struct {
	WorkerCount int            `json:"worker_count"`
	Workers     []WorkerHealth `json:"workers"`
}

// WorkerPool owns a fixed number of Workers sharing one ExecutionStore
// and Runner. Grounded on the teacher's queue.WorkerPool: spawn N
// workers at Start, fan Stop out to all of them, aggregate Health.
type WorkerPool struct {
	workers []*Worker
	logger  *slog.Logger
}

// NewWorkerPool builds count Workers, each with its own owner id derived
// from ownerPrefix so the lease columns can tell them apart in the
// database (e.g. "soarcore-1-worker-0").
func NewWorkerPool(count int, ownerPrefix string, executions ExecutionStore, playbooks PlaybookStore, runner Runner, leaseFor, poll time.Duration, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if count <= 0 {
		count = 1
	}
	workers := make([]*Worker, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("%s-worker-%d", ownerPrefix, i)
		workers[i] = NewWorker(id, id, executions, playbooks, runner, leaseFor, poll, logger)
	}
	return &WorkerPool{workers: workers, logger: logger}
}

// Start launches every worker's poll loop.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("starting execution worker pool", "workers", len(p.workers))
	for _, w := range p.workers {
		w.Start(ctx)
	}
}

// Stop stops every worker, waiting for each to finish its in-flight
// execution before returning.
func (p *WorkerPool) Stop() {
	p.logger.Info("stopping execution worker pool")
	for _, w := range p.workers {
		w.Stop()
	}
}

// Health aggregates the pool's per-worker health.
func (p *WorkerPool) Health() PoolHealth {
	health := PoolHealth{WorkerCount: len(p.workers), Workers: make([]WorkerHealth, len(p.workers))}
	for i, w := range p.workers {
		health.Workers[i] = w.Health()
	}
	return health
}
