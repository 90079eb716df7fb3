package engine

import (
	"context"
	"time"

	"github.com/soarcore/soarcore/pkg/connector"
	"github.com/soarcore/soarcore/pkg/jsonpath"
	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/trigger"
)

// ConnectorInvoker is the subset of *connector.Invoker the engine needs,
// accepted as an interface so step dispatch can be tested without a real
// registry (§4.5).
type ConnectorInvoker interface {
	Invoke(ctx context.Context, connectorRef, actionType string, inputs map[string]any, timeout time.Duration) (map[string]any, *connector.Error)
}

// stepResult is what dispatch hands back to the main loop: the output to
// store under step_id, the branch target it implies (if any), and
// whether the step failed.
type stepResult struct {
	output      any
	branch      string // explicit next step id, "" if none declared
	branchIsEnd bool
	err         *connector.Error
}

func (e *Engine) dispatchStep(ctx context.Context, step models.Step, pb models.Playbook, ex *models.Execution, ctxData map[string]any) stepResult {
	switch step.Type {
	case models.StepEnrichment, models.StepNotification:
		return e.dispatchConnector(ctx, step, ctxData, false)
	case models.StepAction:
		return e.dispatchConnector(ctx, step, ctxData, pb.DSL.ShadowMode)
	case models.StepCondition:
		return e.dispatchCondition(step, ctxData)
	case models.StepApproval:
		return e.dispatchApproval(step)
	default:
		return stepResult{err: connector.NewError(connector.CodeInvalidAction, "unknown step type")}
	}
}

func (e *Engine) dispatchConnector(ctx context.Context, step models.Step, ctxData map[string]any, shadow bool) stepResult {
	inputs := resolveInputs(step.Input, ctxData)

	if shadow {
		return stepResult{output: map[string]any{
			"skipped":       true,
			"reason":        "shadow_mode",
			"would_execute": map[string]any{"connector_id": step.ConnectorID, "action_type": step.ActionType, "inputs": inputs},
		}}
	}

	timeout := time.Duration(step.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = e.defaultStepTimeout
	}

	out, cerr := e.invoker.Invoke(ctx, step.ConnectorID, step.ActionType, inputs, timeout)
	if cerr != nil {
		return stepResult{err: cerr}
	}

	result := stepResult{output: out}
	if step.OnSuccess != nil {
		if step.OnSuccess.Behavior == "end" {
			result.branchIsEnd = true
		} else {
			result.branch = step.OnSuccess.Goto
		}
	}
	return result
}

func (e *Engine) dispatchCondition(step models.Step, ctxData map[string]any) stepResult {
	if step.Condition == nil {
		return stepResult{err: connector.NewError(connector.CodeInvalidAction, string(CodeConditionMissingBranch))}
	}

	res := jsonpath.Resolve(ctxData, step.Condition.Field)
	var fieldVal any
	if res.Found {
		fieldVal = res.Value
	}
	matched := evaluateConditionValue(step.Condition.Operator, fieldVal, res.Found, step.Condition.Value)

	target := step.OnFalse
	if matched {
		target = step.OnTrue
	}
	output := map[string]any{
		"result":          matched,
		"evaluated_value": fieldVal,
		"branch_taken":    map[bool]string{true: "on_true", false: "on_false"}[matched],
		"next_step":       target,
	}

	if target == "" {
		return stepResult{output: output, err: connector.NewError(connector.CodeInvalidAction, string(CodeConditionMissingBranch))}
	}
	return stepResult{output: output, branch: target}
}

// evaluateConditionValue reuses the trigger operator set (§4.4.2: "obeys
// the same hardened rules as §4.3") by wrapping the single field/value
// pair into a one-condition trigger evaluation.
func evaluateConditionValue(operator string, fieldVal any, found bool, condVal any) bool {
	cond := models.Condition{Field: "v", Operator: operator, Value: condVal}
	wrapper := map[string]any{}
	if found {
		wrapper["v"] = fieldVal
	}
	return trigger.Evaluate(models.Trigger{
		Enabled:    true,
		Match:      models.MatchAll,
		Conditions: []models.Condition{cond},
	}, wrapper) == trigger.Matched
}

func (e *Engine) dispatchApproval(step models.Step) stepResult {
	if step.OnTimeout == "" {
		return stepResult{err: connector.NewError(connector.CodeInvalidAction, string(CodeApprovalMissingOnTimeout))}
	}
	return stepResult{output: map[string]any{"decision": "pending"}}
}
