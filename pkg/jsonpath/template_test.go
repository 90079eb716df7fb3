package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	ctx := map[string]any{
		"trigger_data": map[string]any{"source_ip": "1.2.3.4"},
		"steps": map[string]any{
			"E1": map[string]any{"output": map[string]any{"reputation_score": float64(80)}},
		},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple substitution", "{{ trigger_data.source_ip }}", "1.2.3.4"},
		{"embedded in literal", "ip=[{{trigger_data.source_ip}}]", "ip=[1.2.3.4]"},
		{"missing path renders empty", "value={{ nope.nope }}", "value="},
		{"numeric value", "score={{ steps.E1.output.reputation_score }}", "score=80"},
		{"no tokens", "literal:auto", "literal:auto"},
		{"unterminated token kept verbatim", "{{ trigger_data.source_ip", "{{ trigger_data.source_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.in, ctx))
		})
	}
}
