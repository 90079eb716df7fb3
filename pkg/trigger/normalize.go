package trigger

import "github.com/soarcore/soarcore/pkg/jsonpath"

// aliasSpec declares one flat alias and the ordered dotted-path candidates
// it may be derived from (first match wins). Original fields are always
// preserved; an alias is never overwritten if it is already present (§4.3).
type aliasSpec struct {
	alias      string
	candidates []string
}

var aliasSpecs = []aliasSpec{
	{"source_ip", []string{"source_ip", "data.srcip", "srcip", "src_ip"}},
	{"destination_ip", []string{"destination_ip", "data.dstip", "dstip", "dst_ip"}},
	{"destination_port", []string{"destination_port", "data.dstport", "dstport", "dst_port"}},
	{"rule_description", []string{"rule_description", "rule.description"}},
	{"rule_id", []string{"rule_id", "rule.id"}},
	{"agent_name", []string{"agent_name", "agent.name"}},
	{"agent_ip", []string{"agent_ip", "agent.ip"}},
	{"user", []string{"user", "data.srcuser", "data.user", "data.dstuser"}},
}

// Normalize returns a shallow copy of alert with the flat aliases of §4.3
// added when absent. The original map is not mutated.
func Normalize(alert map[string]any) map[string]any {
	out := make(map[string]any, len(alert)+len(aliasSpecs))
	for k, v := range alert {
		out[k] = v
	}

	for _, spec := range aliasSpecs {
		if _, exists := out[spec.alias]; exists {
			continue
		}
		for _, candidate := range spec.candidates {
			res := jsonpath.Resolve(alert, candidate)
			if res.Found {
				out[spec.alias] = res.Value
				break
			}
		}
	}
	return out
}
