package connector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soarcore/soarcore/pkg/models"
)

// ValidateInput enforces an action's declared field types against the
// resolved inputs (§4.5): required fields present, primitive types
// satisfied. Extra fields not named in the schema are passed through
// unchecked.
func ValidateInput(schema models.ActionSchema, inputs map[string]any) *Error {
	for _, field := range schema.RequiredFields {
		if _, ok := inputs[field]; !ok {
			return NewError(CodeInvalidInput, fmt.Sprintf("missing required field %q", field))
		}
	}

	for field, value := range inputs {
		kind, declared := schema.FieldTypes[field]
		if !declared {
			continue
		}
		if err := checkType(field, kind, value); err != nil {
			return err
		}
	}

	return nil
}

func checkType(field, kind string, value any) *Error {
	switch kind {
	case "string":
		if _, ok := value.(string); !ok {
			return invalidType(field, kind)
		}
	case "string:ip":
		s, ok := value.(string)
		if !ok || !isIPv4(s) {
			return invalidType(field, kind)
		}
	case "number":
		switch value.(type) {
		case float64, int, int64:
		default:
			return invalidType(field, kind)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return invalidType(field, kind)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return invalidType(field, kind)
		}
	}
	return nil
}

func invalidType(field, kind string) *Error {
	return NewError(CodeInvalidInput, fmt.Sprintf("field %q must be of type %s", field, kind))
}

// isIPv4 checks a dotted-quad IPv4 address without pulling in net.ParseIP's
// acceptance of IPv6 and zone forms — the schema only ever declares
// "string:ip" for the dotted IPv4 shape used by §4.5's worked examples.
func isIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
		if len(p) > 1 && p[0] == '0' {
			return false
		}
	}
	return true
}
