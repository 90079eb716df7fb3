package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/webhook"
)

func TestWebhookIngestHandler_Accepted(t *testing.T) {
	s := fullyWiredServer()
	s.ingress = &fakeIngress{result: &webhook.Result{Outcome: webhook.OutcomeAccepted, ExecutionID: "ex-1"}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook/wh-1", bytes.NewBufferString(`{"severity":"critical"}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("webhook_id")
	c.SetParamValues("wh-1")

	require.NoError(t, s.webhookIngestHandler(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "ex-1")
}

func TestWebhookIngestHandler_DroppedNoMatch(t *testing.T) {
	s := fullyWiredServer()
	s.ingress = &fakeIngress{result: &webhook.Result{Outcome: webhook.OutcomeDropped}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook/wh-1", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("webhook_id")
	c.SetParamValues("wh-1")

	require.NoError(t, s.webhookIngestHandler(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWebhookIngestHandler_RejectedMapsToErrorHTTPStatus(t *testing.T) {
	s := fullyWiredServer()
	s.ingress = &fakeIngress{err: &webhook.Error{Code: webhook.CodeRateLimited, Message: "too many requests", RetryAfterSeconds: 30}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook/wh-1", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("webhook_id")
	c.SetParamValues("wh-1")

	require.NoError(t, s.webhookIngestHandler(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}
