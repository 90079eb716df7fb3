package api

import (
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/soarcore/soarcore/pkg/webhook"
)

// webhookIngestHandler handles POST /webhook/{webhook_id} (§4.1, §6).
func (s *Server) webhookIngestHandler(c *echo.Context) error {
	webhookID := c.Param("webhook_id")
	if webhookID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "webhook id is required")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	req := webhook.Request{
		WebhookID: webhookID,
		PeerIP:    c.RealIP(),
		Body:      body,
		Timestamp: c.Request().Header.Get("X-Webhook-Timestamp"),
		Signature: c.Request().Header.Get("X-Webhook-Signature"),
	}

	result, ierr := s.ingress.Ingest(c.Request().Context(), req)
	if ierr != nil {
		resp := WebhookRejectResponse{Code: string(ierr.Code), Message: ierr.Message, RetryAfter: ierr.RetryAfterSeconds}
		return c.JSON(ierr.HTTPStatus(), resp)
	}

	if result.Outcome == webhook.OutcomeDropped {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusAccepted, WebhookIngestResponse{ExecutionID: result.ExecutionID})
}
