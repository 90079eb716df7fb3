package sla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soarcore/soarcore/pkg/models"
)

// ExecutionStore is the subset of *store.ExecutionRepo the health monitor
// needs.
type ExecutionStore interface {
	ListByState(ctx context.Context, state models.ExecutionState) ([]models.Execution, error)
	ListCompletedSince(ctx context.Context, since time.Time) ([]models.Execution, error)
	ListStale(ctx context.Context, olderThan time.Duration) ([]models.Execution, error)
}

// ApprovalStore is the subset of *store.ApprovalRepo the health monitor
// needs for its stale-approval count.
type ApprovalStore interface {
	ExpirePast(ctx context.Context, now time.Time) ([]models.Approval, error)
}

// WebhookStore is the subset of *store.WebhookRepo the health monitor
// needs for its ingestion-drop comparison.
type WebhookStore interface {
	ListAll(ctx context.Context) ([]models.Webhook, error)
}

// Auditor records health alerts; satisfied by pkg/audit.Service.
type Auditor interface {
	Record(ctx context.Context, executionID, playbookID string, ev models.AuditEvent)
}

// Now returns the current time; injectable so tests are deterministic
// (§7's "clock dependency" design note).
type Now func() time.Time

// HealthReport is one sweep's snapshot of the counters named in §4.7's
// second paragraph.
type HealthReport struct {
	ExecutionBacklog     int
	ApprovalBacklog      int
	StaleApprovalsExpired int
	StaleExecutions      int
	BreachRateLastHour   float64 // breached resolutions / total resolutions, 0..1
	PlaybookFailureRate  map[string]float64
	WebhookDropDelta     map[string]float64 // webhook_id -> drop-rate delta vs last sweep
	Alerts               []string
}

// alertThresholds bounds when a counter is alert-worthy. Left as plain
// fields rather than config.SLAConfig so this package has no import
// dependency on pkg/config; cmd/soarcore wires the actual values.
type alertThresholds struct {
	maxExecutionBacklog int
	maxBreachRate       float64
	maxFailureRate      float64
	maxDropDelta        float64
	staleExecutionAfter time.Duration
}

func defaultThresholds() alertThresholds {
	return alertThresholds{
		maxExecutionBacklog: 200,
		maxBreachRate:       0.2,
		maxFailureRate:      0.3,
		maxDropDelta:        0.25,
		staleExecutionAfter: 15 * time.Minute,
	}
}

// HealthMonitor runs the periodic platform-health sweep of §4.7. It keeps
// the previous sweep's webhook drop rates in memory to compute a delta,
// and de-duplicates alerts so a condition that stays tripped across
// consecutive sweeps is only recorded once until it clears.
type HealthMonitor struct {
	executions ExecutionStore
	approvals  ApprovalStore
	webhooks   WebhookStore
	audit      Auditor
	now        Now
	thresholds alertThresholds

	mu           sync.Mutex
	lastDropRate map[string]float64
	activeAlerts map[string]bool
}

// NewHealthMonitor builds a HealthMonitor. now defaults to time.Now.
func NewHealthMonitor(executions ExecutionStore, approvals ApprovalStore, webhooks WebhookStore, audit Auditor, now Now) *HealthMonitor {
	if now == nil {
		now = time.Now
	}
	return &HealthMonitor{
		executions:   executions,
		approvals:    approvals,
		webhooks:     webhooks,
		audit:        audit,
		now:          now,
		thresholds:   defaultThresholds(),
		lastDropRate: make(map[string]float64),
		activeAlerts: make(map[string]bool),
	}
}

// Sweep computes one HealthReport and records (de-duplicated) audit
// alerts for any tripped threshold.
func (m *HealthMonitor) Sweep(ctx context.Context) (*HealthReport, error) {
	now := m.now()
	report := &HealthReport{
		PlaybookFailureRate: make(map[string]float64),
		WebhookDropDelta:    make(map[string]float64),
	}

	executing, err := m.executions.ListByState(ctx, models.ExecutionExecuting)
	if err != nil {
		return nil, fmt.Errorf("list executing: %w", err)
	}
	waiting, err := m.executions.ListByState(ctx, models.ExecutionWaitingApproval)
	if err != nil {
		return nil, fmt.Errorf("list waiting approval: %w", err)
	}
	report.ExecutionBacklog = len(executing) + len(waiting)
	report.ApprovalBacklog = len(waiting)

	completed, err := m.executions.ListCompletedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list completed since: %w", err)
	}
	breached := 0
	failuresByPlaybook := make(map[string]int)
	totalByPlaybook := make(map[string]int)
	for _, ex := range completed {
		totalByPlaybook[ex.PlaybookID]++
		if ex.State == models.ExecutionFailed {
			failuresByPlaybook[ex.PlaybookID]++
		}
		if ex.SLAStatus != nil && ex.SLAStatus.Resolution.Breached {
			breached++
		}
	}
	if len(completed) > 0 {
		report.BreachRateLastHour = float64(breached) / float64(len(completed))
	}
	for playbookID, total := range totalByPlaybook {
		report.PlaybookFailureRate[playbookID] = float64(failuresByPlaybook[playbookID]) / float64(total)
	}

	expired, err := m.approvals.ExpirePast(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("expire past approvals: %w", err)
	}
	report.StaleApprovalsExpired = len(expired)

	stale, err := m.executions.ListStale(ctx, m.thresholds.staleExecutionAfter)
	if err != nil {
		return nil, fmt.Errorf("list stale executions: %w", err)
	}
	report.StaleExecutions = len(stale)

	webhooks, err := m.webhooks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	m.mu.Lock()
	for _, wh := range webhooks {
		dropRate := 0.0
		if wh.Stats.Received > 0 {
			dropRate = float64(wh.Stats.Dropped+wh.Stats.Rejected) / float64(wh.Stats.Received)
		}
		delta := dropRate - m.lastDropRate[wh.WebhookID]
		report.WebhookDropDelta[wh.WebhookID] = delta
		m.lastDropRate[wh.WebhookID] = dropRate
	}
	m.mu.Unlock()

	m.raiseAlerts(ctx, report)
	return report, nil
}

func (m *HealthMonitor) raiseAlerts(ctx context.Context, r *HealthReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	check := func(key string, tripped bool, message string) {
		if tripped {
			r.Alerts = append(r.Alerts, message)
			if !m.activeAlerts[key] {
				m.activeAlerts[key] = true
				m.audit.Record(ctx, "", "", models.AuditEvent{
					Timestamp: m.now(), Action: models.ActionSLABreach, ResourceType: "health",
					ResourceID: key, Outcome: models.OutcomeFailure,
					Details: map[string]any{"message": message},
				})
			}
			return
		}
		delete(m.activeAlerts, key)
	}

	check("execution_backlog", r.ExecutionBacklog > m.thresholds.maxExecutionBacklog,
		fmt.Sprintf("execution backlog at %d exceeds threshold %d", r.ExecutionBacklog, m.thresholds.maxExecutionBacklog))
	check("breach_rate", r.BreachRateLastHour > m.thresholds.maxBreachRate,
		fmt.Sprintf("SLA breach rate %.0f%% exceeds threshold %.0f%% over the last hour", r.BreachRateLastHour*100, m.thresholds.maxBreachRate*100))
	check("stale_execution", r.StaleExecutions > 0,
		fmt.Sprintf("%d execution(s) stuck in EXECUTING with no progress for over %s", r.StaleExecutions, m.thresholds.staleExecutionAfter))

	for playbookID, rate := range r.PlaybookFailureRate {
		check("failure_rate:"+playbookID, rate > m.thresholds.maxFailureRate,
			fmt.Sprintf("playbook %s failure rate %.0f%% exceeds threshold %.0f%%", playbookID, rate*100, m.thresholds.maxFailureRate*100))
	}
	for webhookID, delta := range r.WebhookDropDelta {
		check("drop_delta:"+webhookID, delta > m.thresholds.maxDropDelta,
			fmt.Sprintf("webhook %s drop rate rose %.0f%% since last sweep", webhookID, delta*100))
	}
}
