package config

import (
	"os"
	"regexp"
)

// defaultPattern matches the ${VAR:-default} form; os.Expand only handles
// bare ${VAR}/$VAR, so the default-value syntax is resolved first.
var defaultPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-([^}]*)\}`)

// ExpandEnv expands environment variables in YAML content. Supports
// ${VAR}, $VAR (standard shell-style via os.Expand) and ${VAR:-default}.
// Missing variables with no default expand to empty string; validation
// catches required fields that end up empty.
func ExpandEnv(data []byte) []byte {
	withDefaults := defaultPattern.ReplaceAllStringFunc(string(data), func(tok string) string {
		m := defaultPattern.FindStringSubmatch(tok)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		return m[2]
	})
	return []byte(os.ExpandEnv(withDefaults))
}
