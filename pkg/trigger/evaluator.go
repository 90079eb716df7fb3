// Package trigger implements the declarative predicate evaluator of §4.3: a
// deterministic, side-effect-free match against a nested JSON alert.
package trigger

import (
	"fmt"
	"strings"

	"github.com/soarcore/soarcore/pkg/jsonpath"
	"github.com/soarcore/soarcore/pkg/models"
)

// Outcome is the result handed back to the webhook ingress (§4.1).
type Outcome string

const (
	Matched Outcome = "matched"
	Dropped Outcome = "dropped"
)

// Evaluate applies trig's conditions against alert in declared order,
// short-circuiting per §4.3's match-mode rule. Conditions are evaluated in
// declared order; the evaluator never mutates alert.
func Evaluate(trig models.Trigger, alert map[string]any) Outcome {
	if !trig.Enabled || len(trig.Conditions) == 0 {
		return Dropped
	}

	switch trig.Match {
	case models.MatchAny:
		for _, c := range trig.Conditions {
			if evaluateCondition(c, alert) {
				return Matched
			}
		}
		return Dropped
	default: // models.MatchAll and any unrecognized mode default to ALL semantics
		for _, c := range trig.Conditions {
			if !evaluateCondition(c, alert) {
				return Dropped
			}
		}
		return Matched
	}
}

// evaluateCondition dispatches a single condition to its operator. Unknown
// operators are treated as non-matching rather than panicking; trigger
// definitions are not checked for valid operators before they reach this
// path.
func evaluateCondition(c models.Condition, alert map[string]any) bool {
	res := jsonpath.Resolve(alert, c.Field)

	switch c.Operator {
	case "exists":
		return res.Found
	case "not_exists":
		return !res.Found
	}

	if !res.Found {
		return false
	}

	switch c.Operator {
	case "equals":
		return equalsLoose(res.Value, c.Value)
	case "not_equals":
		return !equalsLoose(res.Value, c.Value)
	case "gt", "gte", "lt", "lte":
		return compareNumbers(c.Operator, res.Value, c.Value)
	case "contains", "not_contains", "starts_with", "ends_with":
		return stringOp(c.Operator, res.Value, c.Value)
	case "in", "not_in":
		return setOp(c.Operator, res.Value, c.Value)
	case "array_contains", "array_contains_any":
		return arrayOp(c.Operator, res.Value, c.Value)
	default:
		return false
	}
}

// equalsLoose implements equality with the single stated concession:
// string<->number comparisons are done via stringification. Any other
// type mismatch is never equal.
func equalsLoose(a, b any) bool {
	if fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) {
		return a == b
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	an, aIsNum := asFloat(a)
	bn, bIsNum := asFloat(b)
	switch {
	case aIsStr && bIsNum:
		return as == jsonpath.Stringify(b) || (aIsNum && an == bn)
	case bIsStr && aIsNum:
		return bs == jsonpath.Stringify(a)
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// compareNumbers requires both operands to be numbers (§4.3); a
// non-numeric operand never matches.
func compareNumbers(op string, fieldVal, condVal any) bool {
	a, aOK := asFloat(fieldVal)
	b, bOK := asFloat(condVal)
	if !aOK || !bOK {
		return false
	}
	switch op {
	case "gt":
		return a > b
	case "gte":
		return a >= b
	case "lt":
		return a < b
	case "lte":
		return a <= b
	}
	return false
}

// stringOp requires both operands to be strings and is case-insensitive
// (§4.3).
func stringOp(op string, fieldVal, condVal any) bool {
	a, aOK := fieldVal.(string)
	b, bOK := condVal.(string)
	if !aOK || !bOK {
		return false
	}
	a, b = strings.ToLower(a), strings.ToLower(b)
	switch op {
	case "contains":
		return strings.Contains(a, b)
	case "not_contains":
		return !strings.Contains(a, b)
	case "starts_with":
		return strings.HasPrefix(a, b)
	case "ends_with":
		return strings.HasSuffix(a, b)
	}
	return false
}

// setOp requires condVal to be an array; membership is strict element
// equality (no string/number concession here, unlike `equals`).
func setOp(op string, fieldVal, condVal any) bool {
	list, ok := condVal.([]any)
	if !ok {
		return false
	}
	member := false
	for _, item := range list {
		if item == fieldVal {
			member = true
			break
		}
	}
	if op == "not_in" {
		return !member
	}
	return member
}

// arrayOp requires fieldVal to be an array (§4.3).
func arrayOp(op string, fieldVal, condVal any) bool {
	arr, ok := fieldVal.([]any)
	if !ok {
		return false
	}
	switch op {
	case "array_contains":
		for _, item := range arr {
			if item == condVal {
				return true
			}
		}
		return false
	case "array_contains_any":
		list, ok := condVal.([]any)
		if !ok {
			return false
		}
		for _, want := range list {
			for _, item := range arr {
				if item == want {
					return true
				}
			}
		}
		return false
	}
	return false
}
