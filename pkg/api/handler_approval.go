package api

import (
	"context"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/soarcore/soarcore/pkg/engine"
	"github.com/soarcore/soarcore/pkg/models"
)

// approveHandler handles POST /approvals/{id}/approve.
func (s *Server) approveHandler(c *echo.Context) error {
	return s.decideApproval(c, models.ApprovalApproved, engine.Approved)
}

// rejectHandler handles POST /approvals/{id}/reject.
func (s *Server) rejectHandler(c *echo.Context) error {
	return s.decideApproval(c, models.ApprovalRejected, engine.Rejected)
}

// decideApproval applies an approval decision the same way the SLA
// monitor's timeout sweep does (pkg/sla/sweeper.go): the approvals-table
// CAS in ApprovalRepo.Decide is the only concurrency guard needed, no
// execution-level lock is claimed here. Resume runs in a detached
// goroutine so the HTTP response returns as soon as the decision is
// recorded, mirroring the teacher's "submit, don't wait" queue style.
func (s *Server) decideApproval(c *echo.Context, status models.ApprovalStatus, decision engine.Decision) error {
	approvalID := c.Param("id")
	var req ApprovalDecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	ap, err := s.approvals.Decide(ctx, approvalID, status, req.ApprovedBy, req.Note)
	if err != nil {
		return mapStoreError(err)
	}

	ex, err := s.executions.Get(ctx, ap.ExecutionID)
	if err != nil {
		return mapStoreError(err)
	}
	pb, err := s.playbooks.GetVersion(ctx, ex.PlaybookID, ex.PlaybookVersion)
	if err != nil {
		return mapStoreError(err)
	}

	go func() {
		if _, err := s.resumer.Resume(context.Background(), ex, pb, decision, req.ApprovedBy, req.Note); err != nil {
			slog.Error("resume after approval decision failed", "execution_id", ex.ExecutionID, "approval_id", approvalID, "error", err)
		}
	}()

	return c.JSON(http.StatusOK, ap)
}
