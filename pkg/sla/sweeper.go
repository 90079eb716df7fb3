package sla

import (
	"context"
	"log/slog"
	"time"

	"github.com/soarcore/soarcore/pkg/engine"
	"github.com/soarcore/soarcore/pkg/models"
)

// ExecutionGetter is the subset of *store.ExecutionRepo the approval
// sweeper needs to reload the execution behind an expired approval.
type ExecutionGetter interface {
	Get(ctx context.Context, executionID string) (models.Execution, error)
}

// PlaybookGetter is the subset of *store.PlaybookRepo the approval
// sweeper needs to reload the execution's bound playbook version.
type PlaybookGetter interface {
	GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error)
}

// Resumer applies a timeout decision to a suspended execution; satisfied
// by *engine.Engine.
type Resumer interface {
	Resume(ctx context.Context, ex models.Execution, pb models.Playbook, decision engine.Decision, approvedBy, note string) (models.Execution, error)
}

// ApprovalSweeper periodically expires past-due approvals and resumes
// their executions down the on_timeout branch (§4.4.6). Grounded on
// ApprovalRepo.ExpirePast's FOR UPDATE SKIP LOCKED batch expiry plus the
// teacher's cron-driven sweep style.
type ApprovalSweeper struct {
	approvals  ApprovalStore
	executions ExecutionGetter
	playbooks  PlaybookGetter
	resumer    Resumer
	logger     *slog.Logger
	now        Now
}

// NewApprovalSweeper builds a sweeper. logger defaults to slog.Default(),
// now to time.Now.
func NewApprovalSweeper(approvals ApprovalStore, executions ExecutionGetter, playbooks PlaybookGetter, resumer Resumer, logger *slog.Logger, now Now) *ApprovalSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &ApprovalSweeper{approvals: approvals, executions: executions, playbooks: playbooks, resumer: resumer, logger: logger, now: now}
}

// Sweep expires every past-due pending approval and resumes its
// execution. A single execution's resume failure is logged and does not
// stop the sweep from processing the rest of the batch.
func (s *ApprovalSweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.approvals.ExpirePast(ctx, s.now())
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, ap := range expired {
		ex, err := s.executions.Get(ctx, ap.ExecutionID)
		if err != nil {
			s.logger.Warn("sla sweep: load execution failed", "execution_id", ap.ExecutionID, "error", err)
			continue
		}
		if ex.State != models.ExecutionWaitingApproval {
			continue
		}
		pb, err := s.playbooks.GetVersion(ctx, ex.PlaybookID, ex.PlaybookVersion)
		if err != nil {
			s.logger.Warn("sla sweep: load playbook failed", "playbook_id", ex.PlaybookID, "error", err)
			continue
		}
		if _, err := s.resumer.Resume(ctx, ex, pb, engine.Timeout, "", "sla: approval expired"); err != nil {
			s.logger.Warn("sla sweep: resume failed", "execution_id", ex.ExecutionID, "error", err)
			continue
		}
		resumed++
	}
	return resumed, nil
}
