package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/soarcore/soarcore/pkg/models"
)

// createConnectorHandler handles POST /connectors.
func (s *Server) createConnectorHandler(c *echo.Context) error {
	var req CreateConnectorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ConnectorID == "" || req.Name == "" || req.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "connector_id, name and type are required")
	}

	conn := models.Connector{
		ConnectorID: req.ConnectorID,
		Name:        req.Name,
		Type:        req.Type,
		Active:      req.Active,
		Actions:     req.Actions,
		Config:      req.Config,
		CreatedAt:   time.Now(),
	}
	if err := s.connectors.Create(c.Request().Context(), conn); err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusCreated, conn)
}

// getConnectorHandler handles GET /connectors/{id}.
func (s *Server) getConnectorHandler(c *echo.Context) error {
	conn, err := s.connectors.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, conn)
}

// listConnectorsHandler handles GET /connectors.
func (s *Server) listConnectorsHandler(c *echo.Context) error {
	conns, err := s.connectors.List(c.Request().Context())
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, conns)
}

// toggleConnectorHandler handles PATCH /connectors/{id} (active/inactive,
// no hard delete — §6 applies the same soft-disable rule to connectors
// as it does to playbooks).
func (s *Server) toggleConnectorHandler(c *echo.Context) error {
	var req ToggleConnectorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	conn, err := s.connectors.Get(ctx, c.Param("id"))
	if err != nil {
		return mapStoreError(err)
	}
	conn.Active = req.Active
	if err := s.connectors.Save(ctx, conn); err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, conn)
}

// testConnectorHandler handles POST /connectors/{id}/test: a plain
// active-flag health check when no action is supplied, or a real
// invocation when {action, parameters} are (§6).
func (s *Server) testConnectorHandler(c *echo.Context) error {
	connectorID := c.Param("id")
	var req TestConnectorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	conn, err := s.connectors.Get(ctx, connectorID)
	if err != nil {
		return mapStoreError(err)
	}

	if req.Action == "" {
		return c.JSON(http.StatusOK, TestConnectorResponse{OK: conn.Active})
	}

	timeout := s.defaultStepTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	output, cerr := s.invoker.Invoke(ctx, connectorID, req.Action, req.Parameters, timeout)
	if cerr != nil {
		return c.JSON(http.StatusOK, TestConnectorResponse{
			OK: false,
			Error: &ConnectorErrorResponse{
				Code:      string(cerr.Code),
				Message:   cerr.Message,
				Retryable: cerr.Retryable,
			},
		})
	}
	return c.JSON(http.StatusOK, TestConnectorResponse{OK: true, Output: output})
}
