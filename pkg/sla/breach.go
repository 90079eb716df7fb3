package sla

import (
	"time"

	"github.com/soarcore/soarcore/pkg/connector"
	"github.com/soarcore/soarcore/pkg/models"
)

// longExternalDelayMS is the duration threshold above which a timeout or
// connection-failure step counts as an external-dependency delay rather
// than a plain automation failure (§4.7's breach classification rule).
const longExternalDelayMS = 10_000

// Evaluate recomputes ex.SLAStatus's actuals and breach flags from its
// current timestamps and step records. It is pure and idempotent: the
// caller (the execution worker, after every Engine.Run return) may
// call it as often as it likes. ex.SLAStatus must already be non-nil
// (Selector.Assign sets it at creation). steps is the bound playbook
// version's step list, needed to tell action and approval steps apart
// from enrichment/condition/notification ones.
func Evaluate(ex *models.Execution, steps []models.Step) {
	if ex.SLAStatus == nil {
		return
	}
	stepType := make(map[string]models.StepType, len(steps))
	for _, st := range steps {
		stepType[st.StepID] = st.Type
	}

	if ex.StartedAt != nil && ex.WebhookReceivedAt != nil {
		actual := ex.StartedAt.Sub(*ex.WebhookReceivedAt).Milliseconds()
		ex.SLAStatus.Acknowledge.ActualMS = actual
		ex.SLAStatus.Acknowledge.Breached = breached(ex.SLAStatus.Acknowledge.ThresholdMS, actual)
	}

	if ex.WebhookReceivedAt != nil {
		if at := firstCompletedActionAt(ex, stepType); at != nil {
			actual := at.Sub(*ex.WebhookReceivedAt).Milliseconds()
			ex.SLAStatus.Containment.ActualMS = actual
			ex.SLAStatus.Containment.Breached = breached(ex.SLAStatus.Containment.ThresholdMS, actual)
		}
	}

	if isTerminal(ex.State) && ex.CompletedAt != nil && ex.WebhookReceivedAt != nil {
		actual := ex.CompletedAt.Sub(*ex.WebhookReceivedAt).Milliseconds()
		ex.SLAStatus.Resolution.ActualMS = actual
		ex.SLAStatus.Resolution.Breached = breached(ex.SLAStatus.Resolution.ThresholdMS, actual)

		if anyBreached(ex.SLAStatus) {
			ex.SLAStatus.BreachReason = classify(ex, stepType)
		}
	}
}

func breached(thresholdMS, actualMS int64) bool {
	return thresholdMS > 0 && actualMS > thresholdMS
}

func isTerminal(state models.ExecutionState) bool {
	return state == models.ExecutionCompleted || state == models.ExecutionFailed
}

func anyBreached(s *models.SLAStatus) bool {
	return s.Acknowledge.Breached || s.Containment.Breached || s.Resolution.Breached
}

func firstCompletedActionAt(ex *models.Execution, stepType map[string]models.StepType) *time.Time {
	for _, rec := range ex.Steps {
		if stepType[rec.StepID] == models.StepAction && rec.State == models.StepCompleted && rec.CompletedAt != nil {
			return rec.CompletedAt
		}
	}
	return nil
}

// classify applies §4.7's inspection rule over step records: any failed
// step -> automation_failure; any step with a timeout/connection-failure
// error and a long duration -> external_dependency_delay; any approval
// step present -> manual_intervention_delay; else external_dependency_delay.
func classify(ex *models.Execution, stepType map[string]models.StepType) string {
	for _, rec := range ex.Steps {
		if rec.State == models.StepFailed {
			return models.BreachAutomationFailure
		}
	}
	for _, rec := range ex.Steps {
		if rec.Error == nil || rec.DurationMS < longExternalDelayMS {
			continue
		}
		switch connector.ErrorCode(rec.Error.Code) {
		case connector.CodeTimeout, connector.CodeConnectionFailed, connector.CodeServiceUnavailable:
			return models.BreachExternalDependency
		}
	}
	for _, rec := range ex.Steps {
		if stepType[rec.StepID] == models.StepApproval {
			return models.BreachManualIntervention
		}
	}
	return models.BreachExternalDependency
}
