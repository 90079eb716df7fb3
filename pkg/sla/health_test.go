package sla

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/models"
)

type fakeHealthExecutions struct {
	byState   map[models.ExecutionState][]models.Execution
	completed []models.Execution
	stale     []models.Execution
}

func (f *fakeHealthExecutions) ListByState(ctx context.Context, state models.ExecutionState) ([]models.Execution, error) {
	return f.byState[state], nil
}

func (f *fakeHealthExecutions) ListCompletedSince(ctx context.Context, since time.Time) ([]models.Execution, error) {
	return f.completed, nil
}

func (f *fakeHealthExecutions) ListStale(ctx context.Context, olderThan time.Duration) ([]models.Execution, error) {
	return f.stale, nil
}

type fakeHealthApprovals struct {
	expired []models.Approval
}

func (f *fakeHealthApprovals) ExpirePast(ctx context.Context, now time.Time) ([]models.Approval, error) {
	return f.expired, nil
}

type fakeHealthWebhooks struct {
	all []models.Webhook
}

func (f *fakeHealthWebhooks) ListAll(ctx context.Context) ([]models.Webhook, error) {
	return f.all, nil
}

type fakeHealthAudit struct {
	events []models.AuditEvent
}

func (f *fakeHealthAudit) Record(ctx context.Context, executionID, playbookID string, ev models.AuditEvent) {
	f.events = append(f.events, ev)
}

func TestSweep_ComputesBacklogAndBreachRate(t *testing.T) {
	breachedAt := time.Now()
	executions := &fakeHealthExecutions{
		byState: map[models.ExecutionState][]models.Execution{
			models.ExecutionExecuting:       {{ExecutionID: "e1"}, {ExecutionID: "e2"}},
			models.ExecutionWaitingApproval: {{ExecutionID: "e3"}},
		},
		completed: []models.Execution{
			{ExecutionID: "e4", PlaybookID: "pb-1", State: models.ExecutionCompleted,
				SLAStatus: &models.SLAStatus{Resolution: models.SLADimension{Breached: true}}, CompletedAt: &breachedAt},
			{ExecutionID: "e5", PlaybookID: "pb-1", State: models.ExecutionFailed,
				SLAStatus: &models.SLAStatus{}, CompletedAt: &breachedAt},
		},
	}
	m := NewHealthMonitor(executions, &fakeHealthApprovals{}, &fakeHealthWebhooks{}, &fakeHealthAudit{}, func() time.Time { return time.Now() })

	report, err := m.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.ExecutionBacklog)
	assert.Equal(t, 1, report.ApprovalBacklog)
	assert.Equal(t, 0.5, report.BreachRateLastHour)
	assert.Equal(t, 0.5, report.PlaybookFailureRate["pb-1"])
}

func TestSweep_RecordsStaleApprovalCount(t *testing.T) {
	approvals := &fakeHealthApprovals{expired: []models.Approval{{ApprovalID: "a1"}, {ApprovalID: "a2"}}}
	m := NewHealthMonitor(&fakeHealthExecutions{byState: map[models.ExecutionState][]models.Execution{}}, approvals, &fakeHealthWebhooks{}, &fakeHealthAudit{}, nil)

	report, err := m.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.StaleApprovalsExpired)
}

func TestSweep_AlertsOnceUntilConditionClears(t *testing.T) {
	audit := &fakeHealthAudit{}
	backlog := make([]models.Execution, 0, 250)
	for i := 0; i < 250; i++ {
		backlog = append(backlog, models.Execution{ExecutionID: "e"})
	}
	executions := &fakeHealthExecutions{byState: map[models.ExecutionState][]models.Execution{
		models.ExecutionExecuting: backlog,
	}}
	m := NewHealthMonitor(executions, &fakeHealthApprovals{}, &fakeHealthWebhooks{}, audit, nil)

	_, err := m.Sweep(context.Background())
	require.NoError(t, err)
	_, err = m.Sweep(context.Background())
	require.NoError(t, err)

	count := 0
	for _, ev := range audit.events {
		if ev.ResourceID == "execution_backlog" {
			count++
		}
	}
	assert.Equal(t, 1, count, "a sustained breach should alert once, not on every sweep")

	executions.byState[models.ExecutionExecuting] = nil
	_, err = m.Sweep(context.Background())
	require.NoError(t, err)
	executions.byState[models.ExecutionExecuting] = backlog
	_, err = m.Sweep(context.Background())
	require.NoError(t, err)

	count = 0
	for _, ev := range audit.events {
		if ev.ResourceID == "execution_backlog" {
			count++
		}
	}
	assert.Equal(t, 2, count, "clearing and re-tripping should alert again")
}

func TestSweep_ReportsAndAlertsOnStaleExecutions(t *testing.T) {
	audit := &fakeHealthAudit{}
	executions := &fakeHealthExecutions{
		byState: map[models.ExecutionState][]models.Execution{},
		stale:   []models.Execution{{ExecutionID: "ex-stuck"}},
	}
	m := NewHealthMonitor(executions, &fakeHealthApprovals{}, &fakeHealthWebhooks{}, audit, nil)

	report, err := m.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.StaleExecutions)
	found := false
	for _, ev := range audit.events {
		if ev.ResourceID == "stale_execution" {
			found = true
		}
	}
	assert.True(t, found, "a stale execution should raise a health alert")
}

func TestSweep_ComputesWebhookDropDelta(t *testing.T) {
	webhooks := &fakeHealthWebhooks{all: []models.Webhook{
		{WebhookID: "wh-1", Stats: models.WebhookStats{Received: 100, Dropped: 10}},
	}}
	m := NewHealthMonitor(&fakeHealthExecutions{byState: map[models.ExecutionState][]models.Execution{}}, &fakeHealthApprovals{}, webhooks, &fakeHealthAudit{}, nil)

	report, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.1, report.WebhookDropDelta["wh-1"], 0.001, "first sweep has no baseline, delta equals current rate")

	webhooks.all[0].Stats.Received = 100
	webhooks.all[0].Stats.Dropped = 15
	report, err = m.Sweep(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.05, report.WebhookDropDelta["wh-1"], 0.001)
}
