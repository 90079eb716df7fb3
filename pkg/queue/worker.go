package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/sla"
	"github.com/soarcore/soarcore/pkg/store"
)

// ErrNoExecutionsAvailable is returned by pollAndProcess when the claim
// query finds nothing to do; the worker backs off rather than treating
// it as an error.
var ErrNoExecutionsAvailable = errors.New("no executions available to claim")

// ExecutionStore is the subset of *store.ExecutionRepo a worker needs to
// claim, lease-renew, release and persist an execution.
type ExecutionStore interface {
	ClaimNext(ctx context.Context, owner string, leaseFor time.Duration) (models.Execution, error)
	Renew(ctx context.Context, executionID, owner string, leaseFor time.Duration) error
	Release(ctx context.Context, executionID, owner string) error
	Save(ctx context.Context, ex models.Execution) error
}

// PlaybookStore is the subset of *store.PlaybookRepo a worker needs to
// load the bound version of a claimed execution.
type PlaybookStore interface {
	GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error)
}

// Runner advances a claimed execution through the engine; satisfied by
// *engine.Engine.
type Runner interface {
	Run(ctx context.Context, ex models.Execution) (models.Execution, error)
}

// WorkerStatus is a worker's current activity for the health endpoint.
type WorkerStatus string

const (
	WorkerIdle    WorkerStatus = "idle"
	WorkerWorking WorkerStatus = "working"
)

// WorkerHealth is one worker's reportable state.
type WorkerHealth struct {
	ID                string       `json:"id"`
	Status            WorkerStatus `json:"status"`
	CurrentExecution  string       `json:"current_execution_id,omitempty"`
	ExecutionsHandled int          `json:"executions_handled"`
	LastActivity      time.Time    `json:"last_activity"`
}

// Worker polls ExecutionStore for the oldest unlocked EXECUTING
// execution, claims it, runs it through the engine to its next
// suspension or terminal point, recomputes its SLA status, and releases
// the lease. Grounded on the teacher's queue.Worker poll/claim/heartbeat
// loop.
type Worker struct {
	id         string
	owner      string
	executions ExecutionStore
	playbooks  PlaybookStore
	runner     Runner
	leaseFor   time.Duration
	poll       time.Duration
	logger     *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu           sync.RWMutex
	status       WorkerStatus
	current      string
	handled      int
	lastActivity time.Time
}

// NewWorker builds a Worker. owner identifies this process for the
// execution lock columns (e.g. "<pod>-worker-<n>").
func NewWorker(id, owner string, executions ExecutionStore, playbooks PlaybookStore, runner Runner, leaseFor, poll time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:           id,
		owner:        owner,
		executions:   executions,
		playbooks:    playbooks,
		runner:       runner,
		leaseFor:     leaseFor,
		poll:         poll,
		logger:       logger,
		stopCh:       make(chan struct{}),
		status:       WorkerIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop after its current execution step and
// waits for it to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports the worker's current activity.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{ID: w.id, Status: w.status, CurrentExecution: w.current, ExecutionsHandled: w.handled, LastActivity: w.lastActivity}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := w.logger.With("worker_id", w.id)
	log.Info("execution worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("execution worker stopping")
			return
		case <-ctx.Done():
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoExecutionsAvailable) || errors.Is(err, store.ErrNotFound) {
					w.sleep(w.poll)
					continue
				}
				log.Error("execution processing error", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims the next eligible execution, runs it to its next
// suspension or terminal point, and releases the lease.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	ex, err := w.executions.ClaimNext(ctx, w.owner, w.leaseFor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoExecutionsAvailable
		}
		return fmt.Errorf("claim next execution: %w", err)
	}

	log := w.logger.With("execution_id", ex.ExecutionID, "worker_id", w.id)
	log.Info("execution claimed")
	w.setStatus(WorkerWorking, ex.ExecutionID)
	defer w.setStatus(WorkerIdle, "")

	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.heartbeat(heartbeatCtx, ex.ExecutionID)

	pb, err := w.playbooks.GetVersion(ctx, ex.PlaybookID, ex.PlaybookVersion)
	if err != nil {
		log.Error("failed to load bound playbook version", "error", err)
		_ = w.executions.Release(context.Background(), ex.ExecutionID, w.owner)
		return fmt.Errorf("load playbook version: %w", err)
	}

	result, runErr := w.runner.Run(ctx, ex)
	cancel()

	sla.Evaluate(&result, pb.DSL.Steps)
	if err := w.executions.Save(context.Background(), result); err != nil {
		log.Error("failed to persist post-run SLA status", "error", err)
	}

	if err := w.executions.Release(context.Background(), ex.ExecutionID, w.owner); err != nil {
		log.Warn("failed to release execution lease", "error", err)
	}

	w.mu.Lock()
	w.handled++
	w.mu.Unlock()

	if runErr != nil {
		return fmt.Errorf("run execution %s: %w", ex.ExecutionID, runErr)
	}
	log.Info("execution processing complete", "state", result.State)
	return nil
}

// heartbeat renews the execution's lease periodically so a long-running
// step never loses its claim to another worker's crash-recovery scan.
func (w *Worker) heartbeat(ctx context.Context, executionID string) {
	interval := w.leaseFor / 2
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.executions.Renew(ctx, executionID, w.owner, w.leaseFor); err != nil {
				w.logger.Warn("lease renew failed", "execution_id", executionID, "error", err)
			}
		}
	}
}

func (w *Worker) setStatus(status WorkerStatus, executionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.current = executionID
	w.lastActivity = time.Now()
}
