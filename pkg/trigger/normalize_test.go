package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_AddsAliasFromNestedCandidate(t *testing.T) {
	alert := map[string]any{
		"rule": map[string]any{"id": "5710"},
		"data": map[string]any{"srcip": "1.2.3.4"},
	}
	out := Normalize(alert)

	assert.Equal(t, "1.2.3.4", out["source_ip"])
	assert.Equal(t, "5710", out["rule_id"])
	// original nested fields are preserved, not replaced.
	assert.Equal(t, "5710", out["rule"].(map[string]any)["id"])
}

func TestNormalize_DoesNotOverwriteExistingAlias(t *testing.T) {
	alert := map[string]any{
		"source_ip": "9.9.9.9",
		"data":      map[string]any{"srcip": "1.2.3.4"},
	}
	out := Normalize(alert)

	assert.Equal(t, "9.9.9.9", out["source_ip"])
}

func TestNormalize_FirstMatchingCandidateWins(t *testing.T) {
	alert := map[string]any{
		"srcip":   "2.2.2.2",
		"src_ip":  "3.3.3.3",
	}
	out := Normalize(alert)

	assert.Equal(t, "2.2.2.2", out["source_ip"])
}

func TestNormalize_MissingCandidatesLeaveAliasAbsent(t *testing.T) {
	alert := map[string]any{"unrelated": "x"}
	out := Normalize(alert)

	_, exists := out["source_ip"]
	assert.False(t, exists)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	alert := map[string]any{"data": map[string]any{"srcip": "1.2.3.4"}}
	_ = Normalize(alert)

	_, exists := alert["source_ip"]
	assert.False(t, exists)
}
