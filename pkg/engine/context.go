package engine

import (
	"strings"

	"github.com/soarcore/soarcore/pkg/jsonpath"
	"github.com/soarcore/soarcore/pkg/models"
)

const literalPrefix = "literal:"

// buildContext assembles the execution context of §4.4.2:
// {trigger_data, steps, playbook, execution}. Values are plain
// map[string]any/[]any/primitives so jsonpath.Resolve's own-property walk
// applies uniformly to trigger data and to prior step output alike.
func buildContext(ex models.Execution, pb models.Playbook, outputs map[string]any) map[string]any {
	stepsOut := make(map[string]any, len(outputs))
	for id, out := range outputs {
		stepsOut[id] = map[string]any{"output": out}
	}
	return map[string]any{
		"trigger_data": ex.TriggerData,
		"steps":        stepsOut,
		"playbook": map[string]any{
			"playbook_id": pb.PlaybookID,
			"version":     pb.Version,
			"name":        pb.Name,
		},
		"execution": map[string]any{
			"execution_id":    ex.ExecutionID,
			"execution_count": ex.ExecutionCount,
		},
	}
}

// resolveInputs evaluates a step's input mapping (§4.4.2) against ctx.
// Each value is either a literal (prefixed "literal:"), a bare dotted
// path, or a template string containing "{{ }}" interpolations. Missing
// paths render as empty strings; they are never resolution errors.
func resolveInputs(input map[string]string, ctx map[string]any) map[string]any {
	resolved := make(map[string]any, len(input))
	for field, expr := range input {
		resolved[field] = resolveOne(expr, ctx)
	}
	return resolved
}

func resolveOne(expr string, ctx map[string]any) any {
	if lit, ok := strings.CutPrefix(expr, literalPrefix); ok {
		return lit
	}
	if strings.Contains(expr, "{{") {
		return jsonpath.RenderTemplate(expr, ctx)
	}
	res := jsonpath.Resolve(ctx, expr)
	if !res.Found {
		return ""
	}
	return res.Value
}
