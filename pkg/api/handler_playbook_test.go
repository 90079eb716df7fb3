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
)

func validDSL() models.DSL {
	return models.DSL{Steps: []models.Step{
		{StepID: "notify", Type: models.StepNotification, ConnectorID: "slack", ActionType: "send_message", OnFailure: "stop"},
	}}
}

func TestCreatePlaybookHandler_RejectsEmptySteps(t *testing.T) {
	s := fullyWiredServer()
	body, _ := json.Marshal(CreatePlaybookRequest{PlaybookID: "pb-1", Name: "Test"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/playbooks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.createPlaybookHandler(c)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestCreatePlaybookHandler_CreatesVersionOneDisabled(t *testing.T) {
	s := fullyWiredServer()
	body, _ := json.Marshal(CreatePlaybookRequest{PlaybookID: "pb-1", Name: "Test", DSL: validDSL()})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/playbooks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.createPlaybookHandler(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var pb models.Playbook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pb))
	assert.Equal(t, 1, pb.Version)
	assert.False(t, pb.Enabled)
}

func TestUpdatePlaybookHandler_CreatesNextVersionAndEnablesByDefault(t *testing.T) {
	s := fullyWiredServer()
	fake := s.playbooks.(*fakePlaybookStore)
	fake.versions["pb-1"] = []models.Playbook{{PlaybookID: "pb-1", Version: 1, Enabled: true, DSL: validDSL()}}

	body, _ := json.Marshal(UpdatePlaybookRequest{Name: "Updated", DSL: validDSL()})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/playbooks/pb-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("pb-1")

	require.NoError(t, s.updatePlaybookHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var pb models.Playbook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pb))
	assert.Equal(t, 2, pb.Version)
	assert.True(t, pb.Enabled)

	old, err := fake.GetVersion(req.Context(), "pb-1", 1)
	require.NoError(t, err)
	assert.False(t, old.Enabled, "previous active version must be disabled atomically")
}

func TestTogglePlaybookHandler_FlipsActiveVersion(t *testing.T) {
	s := fullyWiredServer()
	fake := s.playbooks.(*fakePlaybookStore)
	fake.versions["pb-1"] = []models.Playbook{
		{PlaybookID: "pb-1", Version: 2, Enabled: false, DSL: validDSL()},
		{PlaybookID: "pb-1", Version: 1, Enabled: true, DSL: validDSL()},
	}

	body, _ := json.Marshal(TogglePlaybookRequest{Version: 2, Enabled: true})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/playbooks/pb-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("pb-1")

	require.NoError(t, s.togglePlaybookHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	active, err := fake.GetActive(req.Context(), "pb-1")
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
}
