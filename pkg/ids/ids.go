// Package ids generates the random identifiers used for webhooks,
// connectors, executions and approvals — a thin wrapper over
// github.com/google/uuid so every record id in the system is generated
// the same way.
package ids

import "github.com/google/uuid"

// New returns a new random (v4) identifier.
func New() string {
	return uuid.NewString()
}

// NewPrefixed returns a new identifier prefixed with prefix + "-", e.g.
// NewPrefixed("wh") -> "wh-3fa9c1de-...".
func NewPrefixed(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
