package engine

import (
	"context"
	"time"

	"github.com/soarcore/soarcore/pkg/connector"
	"github.com/soarcore/soarcore/pkg/models"
)

func collectOutputs(records []models.StepRecord) map[string]any {
	outputs := make(map[string]any, len(records))
	for _, r := range records {
		if r.State == models.StepCompleted {
			outputs[r.StepID] = r.Output
		}
	}
	return outputs
}

// stepIndex is step_id -> position in the playbook's declared step list,
// used to resolve both sequential advance and named-target branches to
// ex.StepIndex, the main loop's persisted pointer (§4.4.3).
type stepIndex map[string]int

func indexSteps(steps []models.Step) stepIndex {
	idx := make(stepIndex, len(steps))
	for i, s := range steps {
		idx[s.StepID] = i
	}
	return idx
}

// resolveIndex returns the playbook-list position of stepID, or false if
// it names no declared step.
func (idx stepIndex) resolveIndex(stepID string) (int, bool) {
	i, ok := idx[stepID]
	return i, ok
}

// nextSequential returns the index immediately after i in declaration
// order, or -1 if i is last (meaning: end the execution, §4.4.3 step 5).
func nextSequential(steps []models.Step, i int) int {
	if i+1 < len(steps) {
		return i + 1
	}
	return -1
}

func retryCountFor(ex models.Execution, stepID string) int {
	for _, r := range ex.Steps {
		if r.StepID == stepID {
			return r.RetryCount
		}
	}
	return 0
}

func findRecord(ex *models.Execution, stepID string) *models.StepRecord {
	for i := range ex.Steps {
		if ex.Steps[i].StepID == stepID {
			return &ex.Steps[i]
		}
	}
	return nil
}

func (e *Engine) markExecuting(ex *models.Execution, stepID string) {
	now := time.Now()
	if ex.StartedAt == nil {
		ex.StartedAt = &now
		ex.AcknowledgedAt = &now // ack boundary: engine start vs webhook-received (§4.7)
	}
	if r := findRecord(ex, stepID); r != nil {
		r.State = models.StepExecuting
		r.StartedAt = &now
		return
	}
	ex.Steps = append(ex.Steps, models.StepRecord{StepID: stepID, State: models.StepExecuting, StartedAt: &now})
}

func (e *Engine) completeStep(ctx context.Context, ex *models.Execution, pb models.Playbook, step models.Step, output any, start time.Time) {
	now := time.Now()
	r := findRecord(ex, step.StepID)
	if r == nil {
		return
	}
	r.State = models.StepCompleted
	r.CompletedAt = &now
	r.DurationMS = now.Sub(start).Milliseconds()
	r.Output = output

	if step.Type == models.StepAction && ex.ContainmentAt == nil {
		ex.ContainmentAt = &now // containment boundary: first completed action step (§4.7)
	}

	e.audit.Record(ctx, ex.ExecutionID, pb.PlaybookID, models.AuditEvent{
		Timestamp: now, Action: models.ActionStepCompleted, ResourceType: "step",
		ResourceID: step.StepID, Outcome: models.OutcomeSuccess,
	})
	e.metrics.StepCompleted(string(step.Type), now.Sub(start))
}

func (e *Engine) failStepRecord(ex *models.Execution, stepID string, cerr *connector.Error, start time.Time) {
	now := time.Now()
	r := findRecord(ex, stepID)
	if r == nil {
		return
	}
	r.State = models.StepFailed
	r.CompletedAt = &now
	r.DurationMS = now.Sub(start).Milliseconds()
	r.Error = &models.StepError{Code: string(cerr.Code), Message: cerr.Message}
}

func (e *Engine) recordRetry(ctx context.Context, ex *models.Execution, step models.Step, retryCount int) {
	r := findRecord(ex, step.StepID)
	if r != nil {
		r.RetryCount = retryCount
		r.State = models.StepPending
	}
	e.audit.Record(ctx, ex.ExecutionID, "", models.AuditEvent{
		Timestamp: time.Now(), Action: models.ActionStepRetry, ResourceType: "step",
		ResourceID: step.StepID, Outcome: models.OutcomeFailure,
	})
}

// skipUnstarted marks every step the execution never reached as
// SKIPPED (§4.4.3 step 1, loop guard).
func (e *Engine) skipUnstarted(ex *models.Execution, steps []models.Step) {
	seen := make(map[string]bool, len(ex.Steps))
	for _, r := range ex.Steps {
		seen[r.StepID] = true
	}
	for _, s := range steps {
		if !seen[s.StepID] {
			ex.Steps = append(ex.Steps, models.StepRecord{StepID: s.StepID, State: models.StepSkipped})
		}
	}
}

func (e *Engine) finishExecution(ctx context.Context, ex *models.Execution, state models.ExecutionState) {
	if err := transition(ex, state); err != nil {
		// Invariant violation: the loop only ever requests a legal
		// terminal transition, but guard against a future bug rather
		// than leaving the execution in a half-updated state.
		ex.Error = &models.StepError{Code: string(CodeInvalidStateTransition), Message: err.Error()}
		ex.State = models.ExecutionFailed
	}
	now := time.Now()
	ex.CompletedAt = &now
	if ex.StartedAt != nil {
		ex.DurationMS = now.Sub(*ex.StartedAt).Milliseconds()
	}
	e.audit.Record(ctx, ex.ExecutionID, ex.PlaybookID, models.AuditEvent{
		Timestamp: now, Action: actionFor(ex.State), ResourceType: "execution",
		ResourceID: ex.ExecutionID, Outcome: outcomeFor(ex.State),
	})
	e.metrics.ExecutionFinished(ex.State)
}

func (e *Engine) failExecution(ctx context.Context, ex *models.Execution, code Code, message string) {
	ex.Error = &models.StepError{Code: string(code), Message: message}
	e.finishExecution(ctx, ex, models.ExecutionFailed)
}

func actionFor(state models.ExecutionState) string {
	if state == models.ExecutionCompleted {
		return models.ActionExecutionCompleted
	}
	return models.ActionExecutionFailed
}

func outcomeFor(state models.ExecutionState) models.AuditOutcome {
	if state == models.ExecutionCompleted {
		return models.OutcomeSuccess
	}
	return models.OutcomeFailure
}
