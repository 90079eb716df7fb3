package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/store"
)

func fullyWiredServer() *Server {
	return &Server{
		playbooks:  newFakePlaybookStore(),
		executions: newFakeExecutionStore(),
		approvals:  newFakeApprovalStore(),
		connectors: newFakeConnectorStore(),
		starter:    &fakeStarter{},
		resumer:    newFakeResumer(),
		invoker:    &fakeInvoker{},
		ingress:    &fakeIngress{},
		dbHealth:   &fakeHealthStore{status: &store.HealthStatus{Status: "healthy"}},
	}
}

func TestServer_ValidateWiring_ErrorsOnMissingCollaborator(t *testing.T) {
	s := fullyWiredServer()
	s.resumer = nil

	err := s.ValidateWiring()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resumer")
}

func TestServer_ValidateWiring_PassesWhenFullyWired(t *testing.T) {
	s := fullyWiredServer()

	assert.NoError(t, s.ValidateWiring())
}

func TestServer_HealthHandler_ReportsStoreHealth(t *testing.T) {
	s := fullyWiredServer()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.healthHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestServer_HealthHandler_ReportsUnhealthyOnStoreError(t *testing.T) {
	s := fullyWiredServer()
	s.dbHealth = &fakeHealthStore{err: assertErr("db down")}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.healthHandler(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
