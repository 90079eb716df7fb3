package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/store"
)

func TestListExecutionsHandler_FiltersBySeverityOverTriggerData(t *testing.T) {
	s := fullyWiredServer()
	fake := s.executions.(*fakeExecutionStore)
	fake.listResult = store.ListResult{
		Total: 2,
		Executions: []models.Execution{
			{ExecutionID: "ex-1", TriggerData: map[string]any{"severity": "critical"}},
			{ExecutionID: "ex-2", TriggerData: map[string]any{"severity": "low"}},
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/executions?severity=critical", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.listExecutionsHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ListExecutionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Executions, 1)
	assert.Equal(t, "ex-1", resp.Executions[0].ExecutionID)
}

func TestListExecutionsHandler_RejectsInvalidSortBy(t *testing.T) {
	s := fullyWiredServer()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/executions?sort_by=bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.listExecutionsHandler(c)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestCreateExecutionHandler_StartsFromActivePlaybook(t *testing.T) {
	s := fullyWiredServer()
	s.playbooks.(*fakePlaybookStore).versions["pb-1"] = []models.Playbook{{PlaybookID: "pb-1", Version: 1, Enabled: true, DSL: validDSL()}}
	starter := &fakeStarter{executionID: "ex-9"}
	s.starter = starter

	body, _ := json.Marshal(CreateExecutionRequest{PlaybookID: "pb-1", TriggerData: map[string]any{"a": 1}, TriggerSource: "manual:test"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.createExecutionHandler(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "ex-9")
	assert.Equal(t, "manual:test", starter.lastSource)
}

func TestCancelExecutionHandler_ReturnsConflictWhenTerminal(t *testing.T) {
	s := fullyWiredServer()
	fake := s.executions.(*fakeExecutionStore)
	fake.byID["ex-1"] = models.Execution{ExecutionID: "ex-1", State: models.ExecutionCompleted}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/executions/ex-1/cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("ex-1")

	err := s.cancelExecutionHandler(c)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, httpErr.Code)
}
