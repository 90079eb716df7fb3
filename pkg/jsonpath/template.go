package jsonpath

import "strings"

// RenderTemplate substitutes `{{ path.to.field }}` occurrences in s with the
// resolved value from root (stringified), per Design Note §9: a tokenizer +
// resolver pass, no embedded expressions. A path that does not resolve
// renders as an empty string.
func RenderTemplate(s string, root any) string {
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.Index(rest, "}}")
		if end == -1 {
			// Unterminated token: emit the remainder verbatim.
			b.WriteString("{{")
			b.WriteString(rest)
			break
		}

		path := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		res := Resolve(root, path)
		if res.Found {
			b.WriteString(Stringify(res.Value))
		}
	}
	return b.String()
}

// Stringify renders a resolved JSON value as a template-substitution string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return formatNumberOrOther(t)
	}
}
