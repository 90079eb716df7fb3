package api

import "github.com/soarcore/soarcore/pkg/models"

// CreatePlaybookRequest is the body of POST /playbooks. It has no version
// or enabled fields: such keys in the body are dropped by Bind and do not
// cause a rejection. Version 1 is always disabled until an explicit toggle.
type CreatePlaybookRequest struct {
	PlaybookID    string     `json:"playbook_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	DSL           models.DSL `json:"dsl"`
	CreatedBy     string     `json:"created_by"`
	ChangeSummary string     `json:"change_summary"`
}

// UpdatePlaybookRequest is the body of PUT /playbooks/{id}. It carries
// no playbook_id (taken from the path) and creates version N+1.
type UpdatePlaybookRequest struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	DSL           models.DSL `json:"dsl"`
	Enabled       *bool      `json:"enabled"`
	CreatedBy     string     `json:"created_by"`
	ChangeSummary string     `json:"change_summary"`
}

// TogglePlaybookRequest is the body of PATCH /playbooks/{id}.
type TogglePlaybookRequest struct {
	Version int  `json:"version"`
	Enabled bool `json:"enabled"`
}

// CreateExecutionRequest is the body of POST /executions — a manual
// start bypassing webhook ingress entirely.
type CreateExecutionRequest struct {
	PlaybookID    string         `json:"playbook_id"`
	TriggerData   map[string]any `json:"trigger_data"`
	TriggerSource string         `json:"trigger_source"`
}

// ApprovalDecisionRequest is the body of POST /approvals/{id}/approve|reject.
type ApprovalDecisionRequest struct {
	ApprovedBy string `json:"approved_by"`
	Note       string `json:"note"`
}

// CreateConnectorRequest is the body of POST /connectors.
type CreateConnectorRequest struct {
	ConnectorID string                           `json:"connector_id"`
	Name        string                           `json:"name"`
	Type        string                           `json:"type"`
	Active      bool                             `json:"active"`
	Actions     map[string]models.ActionSchema   `json:"actions"`
	Config      map[string]any                   `json:"config"`
}

// ToggleConnectorRequest is the body of PATCH /connectors/{id}.
type ToggleConnectorRequest struct {
	Active bool `json:"active"`
}

// TestConnectorRequest is the body of POST /connectors/{id}/test. When
// Action is empty the handler performs a plain health check instead of
// a real invocation (§6: "either health-checks or performs a real
// execute call if {action, parameters} are supplied").
type TestConnectorRequest struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}
