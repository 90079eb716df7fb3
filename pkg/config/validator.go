package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validator validates a loaded Config, collecting every field-level
// problem rather than stopping at the first (the teacher's ValidateAll
// stops early; SPEC_FULL calls for an aggregated list so operators see
// every misconfigured field in one pass).
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every section's checks and returns a single joined
// error if any field failed, or nil if the configuration is sound.
func (v *Validator) ValidateAll() error {
	var errs []error
	errs = append(errs, v.validateWebhook()...)
	errs = append(errs, v.validateEngine()...)
	errs = append(errs, v.validateSLA()...)
	errs = append(errs, v.validateQueue()...)
	errs = append(errs, v.validateServer()...)
	errs = append(errs, v.validateStore()...)
	return errors.Join(errs...)
}

func (v *Validator) validateWebhook() []error {
	w := v.cfg.Webhook
	var errs []error
	if w.BurstLimit < 1 {
		errs = append(errs, NewValidationError("webhook.burst_limit", fmt.Errorf("must be at least 1, got %d", w.BurstLimit)))
	}
	if w.GlobalRequestsPerMin < w.BurstLimit {
		errs = append(errs, NewValidationError("webhook.global_requests_per_min", fmt.Errorf("must be >= burst_limit")))
	}
	if w.MaxBodyBytes < 1024 {
		errs = append(errs, NewValidationError("webhook.max_body_bytes", fmt.Errorf("must be at least 1024 bytes, got %d", w.MaxBodyBytes)))
	}
	if w.FreshnessWindow <= 0 {
		errs = append(errs, NewValidationError("webhook.freshness_window", fmt.Errorf("must be positive")))
	}
	if w.NonceCacheTTL < w.FreshnessWindow {
		errs = append(errs, NewValidationError("webhook.nonce_cache_ttl", fmt.Errorf("must be >= freshness_window so replays cannot outlive the cache")))
	}
	if w.FloodWindow <= 0 {
		errs = append(errs, NewValidationError("webhook.flood_window", fmt.Errorf("must be positive")))
	}
	if w.PlaybookFloodLimit < 1 {
		errs = append(errs, NewValidationError("webhook.playbook_flood_limit", fmt.Errorf("must be at least 1")))
	}
	if w.GlobalFloodLimit < w.PlaybookFloodLimit {
		errs = append(errs, NewValidationError("webhook.global_flood_limit", fmt.Errorf("must be >= playbook_flood_limit")))
	}
	if w.SustainedAbuseStrikes < 1 {
		errs = append(errs, NewValidationError("webhook.sustained_abuse_strikes", fmt.Errorf("must be at least 1")))
	}
	return errs
}

func (v *Validator) validateEngine() []error {
	e := v.cfg.Engine
	var errs []error
	if e.MaxStepExecutions < 1 {
		errs = append(errs, NewValidationError("engine.max_step_executions", fmt.Errorf("must be at least 1, got %d", e.MaxStepExecutions)))
	}
	if e.MaxStepTimeout <= 0 {
		errs = append(errs, NewValidationError("engine.max_step_timeout", fmt.Errorf("must be positive")))
	}
	if e.DefaultStepTimeout <= 0 || e.DefaultStepTimeout > e.MaxStepTimeout {
		errs = append(errs, NewValidationError("engine.default_step_timeout", fmt.Errorf("must be positive and <= max_step_timeout")))
	}
	if e.ClaimPollInterval <= 0 {
		errs = append(errs, NewValidationError("engine.claim_poll_interval", fmt.Errorf("must be positive")))
	}
	return errs
}

func (v *Validator) validateSLA() []error {
	s := v.cfg.SLA
	var errs []error
	if s.AcknowledgeMS <= 0 {
		errs = append(errs, NewValidationError("sla.acknowledge_ms", fmt.Errorf("must be positive")))
	}
	if s.ContainmentMS <= s.AcknowledgeMS {
		errs = append(errs, NewValidationError("sla.containment_ms", fmt.Errorf("must exceed acknowledge_ms")))
	}
	if s.ResolutionMS <= s.ContainmentMS {
		errs = append(errs, NewValidationError("sla.resolution_ms", fmt.Errorf("must exceed containment_ms")))
	}
	if s.HealthSweepInterval <= 0 {
		errs = append(errs, NewValidationError("sla.health_sweep_interval", fmt.Errorf("must be positive")))
	}
	if strings.TrimSpace(s.ApprovalSweepCron) == "" {
		errs = append(errs, NewValidationError("sla.approval_sweep_cron", fmt.Errorf("required")))
	}
	return errs
}

func (v *Validator) validateQueue() []error {
	q := v.cfg.Queue
	var errs []error
	if q.WorkerCount < 1 || q.WorkerCount > 256 {
		errs = append(errs, NewValidationError("queue.worker_count", fmt.Errorf("must be between 1 and 256, got %d", q.WorkerCount)))
	}
	if q.PollInterval <= 0 {
		errs = append(errs, NewValidationError("queue.poll_interval", fmt.Errorf("must be positive")))
	}
	if q.ClaimLockTimeout <= 0 {
		errs = append(errs, NewValidationError("queue.claim_lock_timeout", fmt.Errorf("must be positive")))
	}
	return errs
}

func (v *Validator) validateServer() []error {
	s := v.cfg.Server
	var errs []error
	if strings.TrimSpace(s.Addr) == "" {
		errs = append(errs, NewValidationError("server.addr", fmt.Errorf("required")))
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, NewValidationError("server.read_timeout", fmt.Errorf("must be positive")))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, NewValidationError("server.write_timeout", fmt.Errorf("must be positive")))
	}
	return errs
}

func (v *Validator) validateStore() []error {
	s := v.cfg.Store
	var errs []error
	if strings.TrimSpace(s.DSN) == "" {
		errs = append(errs, NewValidationError("store.dsn", fmt.Errorf("required (set store.dsn)")))
	}
	if s.MaxConns < 1 {
		errs = append(errs, NewValidationError("store.max_conns", fmt.Errorf("must be at least 1")))
	}
	return errs
}
