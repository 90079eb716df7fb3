package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/engine"
	"github.com/soarcore/soarcore/pkg/models"
)

func TestApproveHandler_DecidesAndResumesAsynchronously(t *testing.T) {
	s := fullyWiredServer()
	s.approvals.(*fakeApprovalStore).byID["ap-1"] = models.Approval{
		ApprovalID: "ap-1", ExecutionID: "ex-1", Status: models.ApprovalPending,
	}
	s.executions.(*fakeExecutionStore).byID["ex-1"] = models.Execution{
		ExecutionID: "ex-1", PlaybookID: "pb-1", PlaybookVersion: 1, State: models.ExecutionWaitingApproval,
	}
	s.playbooks.(*fakePlaybookStore).versions["pb-1"] = []models.Playbook{{PlaybookID: "pb-1", Version: 1, DSL: validDSL()}}
	resumer := newFakeResumer()
	s.resumer = resumer

	body, _ := json.Marshal(ApprovalDecisionRequest{ApprovedBy: "alice", Note: "looks fine"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/approvals/ap-1/approve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("ap-1")

	require.NoError(t, s.approveHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-resumer.called:
	case <-time.After(time.Second):
		t.Fatal("Resume was never called")
	}
	assert.Equal(t, engine.Approved, resumer.decision)
}

func TestRejectHandler_NotPendingReturnsConflict(t *testing.T) {
	s := fullyWiredServer()
	s.approvals.(*fakeApprovalStore).byID["ap-1"] = models.Approval{
		ApprovalID: "ap-1", ExecutionID: "ex-1", Status: models.ApprovalRejected,
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/approvals/ap-1/reject", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("ap-1")

	err := s.rejectHandler(c)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, httpErr.Code)
}
