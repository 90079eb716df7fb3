package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/engine"
	"github.com/soarcore/soarcore/pkg/models"
)

type fakeSweepApprovals struct {
	expired []models.Approval
}

func (f *fakeSweepApprovals) ExpirePast(ctx context.Context, now time.Time) ([]models.Approval, error) {
	return f.expired, nil
}

type fakeSweepExecutions struct {
	byID map[string]models.Execution
}

func (f *fakeSweepExecutions) Get(ctx context.Context, executionID string) (models.Execution, error) {
	ex, ok := f.byID[executionID]
	if !ok {
		return models.Execution{}, errors.New("not found")
	}
	return ex, nil
}

type fakeSweepPlaybooks struct {
	pb models.Playbook
}

func (f *fakeSweepPlaybooks) GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error) {
	return f.pb, nil
}

type fakeResumer struct {
	calls []engine.Decision
	err   error
}

func (f *fakeResumer) Resume(ctx context.Context, ex models.Execution, pb models.Playbook, decision engine.Decision, approvedBy, note string) (models.Execution, error) {
	f.calls = append(f.calls, decision)
	if f.err != nil {
		return ex, f.err
	}
	ex.State = models.ExecutionFailed
	return ex, nil
}

func TestSweep_ResumesExecutionsBehindExpiredApprovals(t *testing.T) {
	approvals := &fakeSweepApprovals{expired: []models.Approval{{ApprovalID: "a1", ExecutionID: "ex-1"}}}
	executions := &fakeSweepExecutions{byID: map[string]models.Execution{
		"ex-1": {ExecutionID: "ex-1", State: models.ExecutionWaitingApproval, PlaybookID: "pb-1", PlaybookVersion: 1},
	}}
	resumer := &fakeResumer{}
	s := NewApprovalSweeper(approvals, executions, &fakeSweepPlaybooks{}, resumer, nil, nil)

	n, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, resumer.calls, 1)
	assert.Equal(t, engine.Timeout, resumer.calls[0])
}

func TestSweep_SkipsExecutionNoLongerWaiting(t *testing.T) {
	approvals := &fakeSweepApprovals{expired: []models.Approval{{ApprovalID: "a1", ExecutionID: "ex-1"}}}
	executions := &fakeSweepExecutions{byID: map[string]models.Execution{
		"ex-1": {ExecutionID: "ex-1", State: models.ExecutionCompleted},
	}}
	resumer := &fakeResumer{}
	s := NewApprovalSweeper(approvals, executions, &fakeSweepPlaybooks{}, resumer, nil, nil)

	n, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, resumer.calls)
}

func TestSweep_ContinuesPastOneFailedResume(t *testing.T) {
	approvals := &fakeSweepApprovals{expired: []models.Approval{
		{ApprovalID: "a1", ExecutionID: "ex-1"},
		{ApprovalID: "a2", ExecutionID: "ex-2"},
	}}
	executions := &fakeSweepExecutions{byID: map[string]models.Execution{
		"ex-1": {ExecutionID: "ex-1", State: models.ExecutionWaitingApproval},
		"ex-2": {ExecutionID: "ex-2", State: models.ExecutionWaitingApproval},
	}}
	resumer := &fakeResumer{err: errors.New("boom")}
	s := NewApprovalSweeper(approvals, executions, &fakeSweepPlaybooks{}, resumer, nil, nil)

	n, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, resumer.calls, 2)
}
