package models

import "time"

// ExecutionState is the closed state set of §4.6. Terminal states
// (Completed, Failed) never transition further.
type ExecutionState string

const (
	ExecutionExecuting        ExecutionState = "EXECUTING"
	ExecutionWaitingApproval  ExecutionState = "WAITING_APPROVAL"
	ExecutionCompleted        ExecutionState = "COMPLETED"
	ExecutionFailed           ExecutionState = "FAILED"

	// ExecutionCancelled is reached only via the cancel API (§6), never
	// via the engine's own state machine (§4.6) — a terminal state the
	// engine neither enters nor leaves.
	ExecutionCancelled ExecutionState = "CANCELLED"
)

// StepState is the per-step lifecycle state (§3.4).
type StepState string

const (
	StepPending   StepState = "PENDING"
	StepExecuting StepState = "EXECUTING"
	StepCompleted StepState = "COMPLETED"
	StepFailed    StepState = "FAILED"
	StepSkipped   StepState = "SKIPPED"
)

// Execution is a single run of a playbook version against one alert (§3.4).
type Execution struct {
	ExecutionID     string         `json:"execution_id"`
	PlaybookID      string         `json:"playbook_id"`
	PlaybookVersion int            `json:"playbook_version"`
	State           ExecutionState `json:"state"`
	TriggerData     map[string]any `json:"trigger_data"`
	TriggerSource   string         `json:"trigger_source,omitempty"`
	Steps           []StepRecord   `json:"steps"`

	WebhookReceivedAt *time.Time `json:"webhook_received_at,omitempty"`
	AcknowledgedAt    *time.Time `json:"acknowledged_at,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	ContainmentAt     *time.Time `json:"containment_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	DurationMS        int64      `json:"duration_ms,omitempty"`

	SLAPolicyID string     `json:"sla_policy_id,omitempty"`
	SLAStatus   *SLAStatus `json:"sla_status,omitempty"`

	ApprovalID string    `json:"approval_id,omitempty"`
	Error      *StepError `json:"error,omitempty"`

	// ExecutionCount is the loop-guard counter (§4.4.3 step 1), persisted so
	// that resume-after-restart does not reset it.
	ExecutionCount int `json:"execution_count"`
	StepIndex      int `json:"step_index"`
}

// StepRecord is the per-step audit trail entry (§3.4, invariant E2).
type StepRecord struct {
	StepID      string     `json:"step_id"`
	State       StepState  `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	RetryCount  int        `json:"retry_count"`
	Output      any        `json:"output,omitempty"`
	Error       *StepError `json:"error,omitempty"`
}

// StepError is the normalized {code, message} pair attached to a failed step
// or a failed execution.
type StepError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SLADimension captures one of the three SLA budgets (§4.7).
type SLADimension struct {
	ThresholdMS int64 `json:"threshold_ms"`
	ActualMS    int64 `json:"actual_ms"`
	Breached    bool  `json:"breached"`
}

// SLAStatus is the per-execution SLA scoreboard (§3.4, §4.7).
type SLAStatus struct {
	Acknowledge   SLADimension `json:"acknowledge"`
	Containment   SLADimension `json:"containment"`
	Resolution    SLADimension `json:"resolution"`
	BreachReason  string       `json:"breach_reason,omitempty"`
}

// Breach reason tags (§4.7).
const (
	BreachAutomationFailure     = "automation_failure"
	BreachExternalDependency    = "external_dependency_delay"
	BreachManualIntervention    = "manual_intervention_delay"
)
