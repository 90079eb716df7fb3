package models

import "time"

// WebhookStatus is the closed status set of §3.2.
type WebhookStatus string

const (
	WebhookActive    WebhookStatus = "active"
	WebhookDisabled  WebhookStatus = "disabled"
	WebhookSuspended WebhookStatus = "suspended"
)

// Webhook is the 1:1 ingress endpoint bound to a playbook (§3.2).
type Webhook struct {
	WebhookID   string        `json:"webhook_id"`
	PlaybookID  string        `json:"playbook_id"`
	SecretHex   string        `json:"-"` // never serialized
	SecretPrefix string       `json:"secret_prefix"`
	RotatedAt   time.Time     `json:"rotated_at"`
	RotationCount int         `json:"rotation_count"`
	Status      WebhookStatus `json:"status"`
	RequireHMAC bool          `json:"require_hmac"`

	MaxRequests       int `json:"max_requests"`
	TimeWindowSeconds int `json:"time_window_seconds"`

	SustainedAbuseCount int    `json:"sustained_abuse_count"`
	SuspendReason       string `json:"suspend_reason,omitempty"`

	Stats WebhookStats `json:"stats"`

	CreatedAt time.Time `json:"created_at"`
}

// WebhookStats tracks the running counters of §3.2.
type WebhookStats struct {
	Received int64 `json:"received"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Dropped  int64 `json:"dropped"`
	Errors   int64 `json:"errors"`

	AvgProcessingMS float64    `json:"avg_processing_ms"`
	LastReceivedAt  *time.Time `json:"last_received_at,omitempty"`
	LastAcceptedAt  *time.Time `json:"last_accepted_at,omitempty"`
}

// MatchMode is the trigger's condition-combination mode (§3.3).
type MatchMode string

const (
	MatchAll MatchMode = "ALL"
	MatchAny MatchMode = "ANY"
)

// Trigger is the predicate list bound 1:1 to a webhook (§3.3).
type Trigger struct {
	WebhookID  string      `json:"webhook_id"`
	Conditions []Condition `json:"conditions"`
	Match      MatchMode   `json:"match"`
	Enabled    bool        `json:"enabled"`
}

// Condition is a single trigger predicate (§3.3, §4.3).
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// Connector is a registered named adapter to an external service (§4.5).
type Connector struct {
	ConnectorID string                    `json:"connector_id"`
	Name        string                    `json:"name"`
	Type        string                    `json:"type"`
	Active      bool                      `json:"active"`
	Actions     map[string]ActionSchema   `json:"actions"`
	Config      map[string]any            `json:"config,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`

	Stats ConnectorStats `json:"stats"`
}

// ActionSchema is the declared input contract for one connector action
// (§4.5): required/optional fields and their primitive types.
type ActionSchema struct {
	RequiredFields []string          `json:"required_fields"`
	OptionalFields []string          `json:"optional_fields"`
	FieldTypes     map[string]string `json:"field_types"` // string|string:ip|number|boolean|array
}

// ConnectorStats tracks per-connector invocation counters (§4.5).
type ConnectorStats struct {
	Successes  int64   `json:"successes"`
	Failures   int64   `json:"failures"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}
