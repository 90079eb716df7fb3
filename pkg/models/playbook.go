// Package models holds the persistent data types of the playbook engine:
// playbooks, executions, approvals, webhooks, triggers, connectors and the
// audit/metric envelopes. These are plain structs with JSON tags; storage
// concerns live in pkg/store, not here.
package models

import "time"

// Playbook is a single immutable version of a versioned workflow definition.
// Invariants V1-V3 (single-active, append-only, non-empty steps) are
// enforced by pkg/store and pkg/validator, not by this type.
type Playbook struct {
	PlaybookID    string    `json:"playbook_id"`
	Version       int       `json:"version"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Enabled       bool      `json:"enabled"`
	DSL           DSL       `json:"dsl"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by"`
	ChangeSummary string    `json:"change_summary,omitempty"`
}

// DSL is the embedded playbook document: its steps plus trigger/runtime
// metadata. The graph editor that produces this document is out of scope
// (§1) — DSL is simply the contract it must conform to.
type DSL struct {
	Steps       []Step `json:"steps"`
	ShadowMode  bool   `json:"shadow_mode,omitempty"`
	TriggerMeta any    `json:"trigger_metadata,omitempty"`
}

// StepType is the closed set of step kinds (§4.4.1).
type StepType string

const (
	StepEnrichment   StepType = "enrichment"
	StepCondition    StepType = "condition"
	StepApproval     StepType = "approval"
	StepAction       StepType = "action"
	StepNotification StepType = "notification"
)

// EndStep is the reserved sentinel step ID meaning "terminate the execution".
const EndStep = "__END__"

// Step is one node of a playbook's step list. Only the fields relevant to
// its Type are meaningful; the validator (§4.2) enforces that combination.
type Step struct {
	StepID  string   `json:"step_id"`
	Type    StepType `json:"type"`
	Input   map[string]string `json:"input,omitempty"` // target field -> literal:/path/template

	// connector steps (enrichment, action, notification)
	ConnectorID       string       `json:"connector_id,omitempty"`
	ActionType        string       `json:"action_type,omitempty"`
	TimeoutSeconds    int          `json:"timeout_seconds,omitempty"`
	RetryPolicy       *RetryPolicy `json:"retry_policy,omitempty"`
	OnSuccess         *Branch      `json:"on_success,omitempty"`
	OnFailure         string       `json:"on_failure,omitempty"` // stop | continue | skip; any other value fails like stop

	// condition steps
	Condition *StepCondition `json:"condition,omitempty"`
	OnTrue    string         `json:"on_true,omitempty"`
	OnFalse   string         `json:"on_false,omitempty"`

	// approval steps
	RequiredRole string `json:"required_role,omitempty"`
	TimeoutHours float64 `json:"timeout_hours,omitempty"`
	OnApproved   string  `json:"on_approved,omitempty"`
	OnRejected   string  `json:"on_rejected,omitempty"` // fail | stop | <step_id>
	OnTimeout    string  `json:"on_timeout,omitempty"`  // fail | continue | skip | __END__ | <step_id>
}

// Branch describes where to go after a connector step succeeds.
type Branch struct {
	Behavior string `json:"behavior,omitempty"` // "end" to terminate
	Goto     string `json:"goto,omitempty"`
}

// StepCondition is the predicate evaluated by a condition step, reusing the
// same operator set as the trigger evaluator (§4.3) over the execution
// context instead of the raw alert.
type StepCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// RetryPolicy configures bounded exponential-backoff retry for a connector
// step (§4.4.5).
type RetryPolicy struct {
	Enabled           bool    `json:"enabled"`
	MaxAttempts       int     `json:"max_attempts"`
	DelaySeconds      float64 `json:"delay_seconds"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
	MaxDelaySeconds   float64 `json:"max_delay_seconds"`
}
