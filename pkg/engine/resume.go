package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/soarcore/soarcore/pkg/models"
)

// Decision is the external caller's verdict on a pending approval
// (§4.4.6).
type Decision string

const (
	Approved Decision = "approved"
	Rejected Decision = "rejected"
	Timeout  Decision = "timeout"
)

// Resume applies an approval decision to a suspended execution, then
// hands it back to Run to continue the main loop. ex must be in
// WAITING_APPROVAL; pb must be its bound playbook version. The caller
// (pkg/api's decision endpoint, or the SLA monitor's timeout sweep) is
// responsible for holding the execution's lock for the duration of the
// call (§4.4.7).
func (e *Engine) Resume(ctx context.Context, ex models.Execution, pb models.Playbook, decision Decision, approvedBy, note string) (models.Execution, error) {
	if ex.State != models.ExecutionWaitingApproval {
		return ex, newError(CodeInvalidStateTransition, "resume requires WAITING_APPROVAL, got "+string(ex.State))
	}

	idx := indexSteps(pb.DSL.Steps)
	if ex.StepIndex < 0 || ex.StepIndex >= len(pb.DSL.Steps) {
		return ex, newError(CodeStepNotFound, "approval step_index out of range")
	}
	step := pb.DSL.Steps[ex.StepIndex]

	r := findRecord(&ex, step.StepID)
	now := time.Now()

	// WAITING_APPROVAL has no edge to COMPLETED, so every decision leaves
	// it first; each branch below then fails, ends or continues the run
	// from EXECUTING.
	if err := transition(&ex, models.ExecutionExecuting); err != nil {
		return ex, err
	}

	switch decision {
	case Approved:
		if r != nil {
			r.State = models.StepCompleted
			r.CompletedAt = &now
			r.Output = map[string]any{"decision": "approved", "decided_at": now, "approved_by": approvedBy, "note": note}
		}
		e.audit.Record(ctx, ex.ExecutionID, pb.PlaybookID, models.AuditEvent{
			Timestamp: now, Action: models.ActionApprovalApproved, ResourceType: "approval",
			ResourceID: ex.ApprovalID, Outcome: models.OutcomeSuccess,
		})
		nextIdx, done, rerr := e.resolveNext(ctx, &ex, step, step.OnApproved, pb.DSL.Steps, idx)
		if rerr != nil {
			return ex, rerr
		}
		if done {
			return ex, e.persist(ctx, ex)
		}
		ex.StepIndex = nextIdx
		return e.Run(ctx, ex)

	case Rejected:
		onRejected := step.OnRejected
		if onRejected == "" {
			onRejected = "fail"
		}
		if r != nil {
			r.State = models.StepFailed
			r.CompletedAt = &now
			r.Error = &models.StepError{Code: string(CodeApprovalRejected), Message: "approval rejected"}
		}
		e.audit.Record(ctx, ex.ExecutionID, pb.PlaybookID, models.AuditEvent{
			Timestamp: now, Action: models.ActionApprovalRejected, ResourceType: "approval",
			ResourceID: ex.ApprovalID, Outcome: models.OutcomeFailure,
		})
		if onRejected == "fail" || onRejected == "stop" {
			e.failExecution(ctx, &ex, CodeApprovalRejected, "approval rejected")
			return ex, e.persist(ctx, ex)
		}
		nextIdx, done, rerr := e.resolveNext(ctx, &ex, step, onRejected, pb.DSL.Steps, idx)
		if rerr != nil {
			return ex, rerr
		}
		if done {
			return ex, e.persist(ctx, ex)
		}
		ex.StepIndex = nextIdx
		return e.Run(ctx, ex)

	case Timeout:
		if step.OnTimeout == "" {
			return ex, newError(CodeApprovalMissingOnTimeout, "approval step "+step.StepID+" has no on_timeout")
		}
		e.audit.Record(ctx, ex.ExecutionID, pb.PlaybookID, models.AuditEvent{
			Timestamp: now, Action: models.ActionApprovalTimeout, ResourceType: "approval",
			ResourceID: ex.ApprovalID, Outcome: models.OutcomeFailure,
		})

		switch step.OnTimeout {
		case "fail":
			if r != nil {
				r.State = models.StepFailed
				r.CompletedAt = &now
				r.Error = &models.StepError{Code: string(CodeApprovalTimeout), Message: "approval timed out"}
			}
			e.failExecution(ctx, &ex, CodeApprovalTimeout, "approval timed out")
			return ex, e.persist(ctx, ex)
		case "skip":
			if r != nil {
				r.State = models.StepSkipped
				r.CompletedAt = &now
			}
			e.finishExecution(ctx, &ex, models.ExecutionCompleted)
			return ex, e.persist(ctx, ex)
		default:
			if r != nil {
				r.State = models.StepSkipped
				r.CompletedAt = &now
			}
			target := step.OnTimeout
			if target == "continue" {
				target = ""
			}
			nextIdx, done, rerr := e.resolveNext(ctx, &ex, step, target, pb.DSL.Steps, idx)
			if rerr != nil {
				return ex, rerr
			}
			if done {
				return ex, e.persist(ctx, ex)
			}
			ex.StepIndex = nextIdx
			return e.Run(ctx, ex)
		}

	default:
		return ex, fmt.Errorf("unknown decision %q", decision)
	}
}
