package jsonpath

import (
	"fmt"
	"strconv"
)

// formatNumberOrOther renders encoding/json's float64 decoding of numbers
// without a trailing ".0" for integral values, and falls back to fmt for
// any other concrete type (maps/slices interpolated into a template render
// as their Go representation — callers should avoid this case).
func formatNumberOrOther(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprintf("%v", n)
	}
}
