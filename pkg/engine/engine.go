package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/soarcore/soarcore/pkg/connector"
	"github.com/soarcore/soarcore/pkg/ids"
	"github.com/soarcore/soarcore/pkg/models"
)

// ExecutionStore is the subset of *store.ExecutionRepo the engine needs.
type ExecutionStore interface {
	Save(ctx context.Context, ex models.Execution) error
}

// ApprovalStore is the subset of *store.ApprovalRepo the engine needs.
type ApprovalStore interface {
	Create(ctx context.Context, ap models.Approval) error
}

// PlaybookStore is the subset of *store.PlaybookRepo the engine needs.
type PlaybookStore interface {
	GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error)
}

// Auditor records audit events; implementations must never block or
// fail the caller (§6, §9) — pkg/audit.Service is the production one.
type Auditor interface {
	Record(ctx context.Context, executionID, playbookID string, ev models.AuditEvent)
}

// MetricsRecorder tracks the closed counter/histogram set of §3.6/§8
// that pertains to step execution.
type MetricsRecorder interface {
	StepCompleted(stepType string, duration time.Duration)
	StepFailed(stepType string)
	StepRetried(stepType string)
	ExecutionFinished(state models.ExecutionState)
}

// Engine is the step interpreter of §4.4. One Engine is shared by every
// worker goroutine; it holds no per-execution state itself (all state
// lives in the models.Execution passed to Run/Resume and is persisted by
// ExecutionStore after every visible change, per §5's serialization
// rule).
type Engine struct {
	executions ExecutionStore
	approvals  ApprovalStore
	playbooks  PlaybookStore
	invoker    ConnectorInvoker
	audit      Auditor
	metrics    MetricsRecorder

	maxStepExecutions  int
	defaultStepTimeout time.Duration
}

// Config bounds the interpreter loop (mirrors pkg/config.EngineConfig;
// kept separate so this package never imports pkg/config directly).
type Config struct {
	MaxStepExecutions  int
	DefaultStepTimeout time.Duration
}

// New builds an Engine from its collaborators.
func New(executions ExecutionStore, approvals ApprovalStore, playbooks PlaybookStore, invoker ConnectorInvoker, audit Auditor, metrics MetricsRecorder, cfg Config) *Engine {
	maxSteps := cfg.MaxStepExecutions
	if maxSteps <= 0 {
		maxSteps = 100
	}
	timeout := cfg.DefaultStepTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		executions:         executions,
		approvals:          approvals,
		playbooks:          playbooks,
		invoker:            invoker,
		audit:              audit,
		metrics:            metrics,
		maxStepExecutions:  maxSteps,
		defaultStepTimeout: timeout,
	}
}

// Run advances ex through its bound playbook version (§4.4.3's main
// loop) until it suspends (WAITING_APPROVAL) or reaches a terminal
// state. ex.StepIndex is the persisted main-loop pointer into
// pb.DSL.Steps; callers resuming after a crash or an approval decision
// pass in the execution with StepIndex already set to where it should
// resume. The caller is expected to hold ex's per-execution lock
// (§4.4.7, §5) for the duration of the call.
func (e *Engine) Run(ctx context.Context, ex models.Execution) (models.Execution, error) {
	pb, err := e.playbooks.GetVersion(ctx, ex.PlaybookID, ex.PlaybookVersion)
	if err != nil {
		return ex, fmt.Errorf("load bound playbook version: %w", err)
	}
	if len(pb.DSL.Steps) == 0 {
		return ex, fmt.Errorf("playbook %s v%d has no steps", pb.PlaybookID, pb.Version)
	}
	idx := indexSteps(pb.DSL.Steps)
	outputs := collectOutputs(ex.Steps)

	for {
		if ex.ExecutionCount >= e.maxStepExecutions {
			e.skipUnstarted(&ex, pb.DSL.Steps)
			e.failExecution(ctx, &ex, CodeLoopDetected, "execution_count exceeded max_step_executions")
			return ex, e.persist(ctx, ex)
		}
		if ex.StepIndex < 0 || ex.StepIndex >= len(pb.DSL.Steps) {
			e.failExecution(ctx, &ex, CodeStepNotFound, fmt.Sprintf("step_index %d out of range", ex.StepIndex))
			return ex, e.persist(ctx, ex)
		}
		ex.ExecutionCount++

		step := pb.DSL.Steps[ex.StepIndex]
		retryCount := retryCountFor(ex, step.StepID)
		e.markExecuting(&ex, step.StepID)
		if err := e.executions.Save(ctx, ex); err != nil {
			return ex, fmt.Errorf("persist step start: %w", err)
		}

		ctxData := buildContext(ex, pb, outputs)
		start := time.Now()
		res := e.dispatchStep(ctx, step, pb, &ex, ctxData)

		if step.Type == models.StepApproval && res.err == nil {
			if err := e.suspendForApproval(ctx, &ex, pb, step); err != nil {
				return ex, err
			}
			return ex, nil
		}

		if res.err != nil {
			stop, nextIdx, delay, err := e.handleFailure(ctx, &ex, step, res.err, start, retryCount, pb.DSL.Steps, idx)
			if err != nil {
				return ex, err
			}
			if stop {
				return ex, e.persist(ctx, ex)
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ex, ctx.Err()
				}
			}
			ex.StepIndex = nextIdx
			if err := e.persist(ctx, ex); err != nil {
				return ex, err
			}
			continue
		}

		outputs[step.StepID] = res.output
		e.completeStep(ctx, &ex, pb, step, res.output, start)

		if res.branchIsEnd {
			e.finishExecution(ctx, &ex, models.ExecutionCompleted)
			return ex, e.persist(ctx, ex)
		}

		nextIdx, done, err := e.resolveNext(ctx, &ex, step, res.branch, pb.DSL.Steps, idx)
		if err != nil {
			return ex, err
		}
		if done {
			return ex, e.persist(ctx, ex)
		}

		ex.StepIndex = nextIdx
		if err := e.persist(ctx, ex); err != nil {
			return ex, err
		}
	}
}

// resolveNext applies §4.4.3 step 5: explicit branch target, else
// sequential advance, else end. done=true means the execution already
// reached a terminal state (completed or failed) and the loop must stop.
func (e *Engine) resolveNext(ctx context.Context, ex *models.Execution, step models.Step, branch string, steps []models.Step, idx stepIndex) (next int, done bool, err error) {
	if branch == "" && step.Type == models.StepCondition {
		e.failExecution(ctx, ex, CodeConditionNoBranch, "condition step produced no branch")
		return 0, true, nil
	}

	target := branch
	if target == "" {
		i, ok := idx.resolveIndex(step.StepID)
		if !ok {
			e.failExecution(ctx, ex, CodeStepNotFound, "current step missing from index: "+step.StepID)
			return 0, true, nil
		}
		seq := nextSequential(steps, i)
		if seq < 0 {
			e.finishExecution(ctx, ex, models.ExecutionCompleted)
			return 0, true, nil
		}
		return seq, false, nil
	}

	if target == models.EndStep {
		e.finishExecution(ctx, ex, models.ExecutionCompleted)
		return 0, true, nil
	}

	i, ok := idx.resolveIndex(target)
	if !ok {
		e.failExecution(ctx, ex, CodeStepNotFound, "next step not found: "+target)
		return 0, true, nil
	}
	return i, false, nil
}

func (e *Engine) persist(ctx context.Context, ex models.Execution) error {
	if err := e.executions.Save(ctx, ex); err != nil {
		return fmt.Errorf("persist execution: %w", err)
	}
	return nil
}

func (e *Engine) suspendForApproval(ctx context.Context, ex *models.Execution, pb models.Playbook, step models.Step) error {
	timeout := step.TimeoutHours
	if timeout <= 0 {
		timeout = 24
	}
	ap := models.Approval{
		ApprovalID:     ids.NewPrefixed("appr"),
		ExecutionID:    ex.ExecutionID,
		PlaybookID:     pb.PlaybookID,
		StepID:         step.StepID,
		Status:         models.ApprovalPending,
		RequiredRole:   step.RequiredRole,
		TriggerContext: ex.TriggerData,
		ExpiresAt:      time.Now().Add(time.Duration(timeout * float64(time.Hour))),
		CreatedAt:      time.Now(),
	}
	if err := e.approvals.Create(ctx, ap); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}

	ex.ApprovalID = ap.ApprovalID
	if err := transition(ex, models.ExecutionWaitingApproval); err != nil {
		return err
	}
	e.audit.Record(ctx, ex.ExecutionID, pb.PlaybookID, models.AuditEvent{
		Timestamp: time.Now(), Action: models.ActionApprovalCreated, ResourceType: "approval",
		ResourceID: ap.ApprovalID, Outcome: models.OutcomeSuccess,
	})
	return e.persist(ctx, *ex)
}

func (e *Engine) handleFailure(ctx context.Context, ex *models.Execution, step models.Step, cerr *connector.Error, start time.Time, retryCount int, steps []models.Step, idx stepIndex) (stop bool, nextIdx int, delay time.Duration, err error) {
	action, wait := decideFailure(step, cerr.Retryable, retryCount)

	i, ok := idx.resolveIndex(step.StepID)
	if !ok {
		return true, 0, 0, fmt.Errorf("step missing from index: %s", step.StepID)
	}

	switch action {
	case actionRetry:
		e.recordRetry(ctx, ex, step, retryCount+1)
		e.metrics.StepRetried(string(step.Type))
		return false, i, wait, nil

	case actionAdvance:
		e.failStepRecord(ex, step.StepID, cerr, start)
		e.metrics.StepFailed(string(step.Type))
		seq := nextSequential(steps, i)
		if seq < 0 {
			e.finishExecution(ctx, ex, models.ExecutionCompleted)
			return true, 0, 0, nil
		}
		return false, seq, 0, nil

	case actionComplete:
		e.failStepRecord(ex, step.StepID, cerr, start)
		e.metrics.StepFailed(string(step.Type))
		e.finishExecution(ctx, ex, models.ExecutionCompleted)
		return true, 0, 0, nil

	default: // actionFail
		e.failStepRecord(ex, step.StepID, cerr, start)
		e.metrics.StepFailed(string(step.Type))
		e.failExecution(ctx, ex, Code(cerr.Code), cerr.Message)
		return true, 0, 0, nil
	}
}
