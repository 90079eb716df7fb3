package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/validator"
)

// createPlaybookHandler handles POST /playbooks (§6: requires
// playbook_id, name, dsl.steps). CreatePlaybookRequest has no version or
// enabled fields, so those keys in the body are ignored, not rejected.
func (s *Server) createPlaybookHandler(c *echo.Context) error {
	var req CreatePlaybookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PlaybookID == "" || req.Name == "" || len(req.DSL.Steps) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "playbook_id, name and dsl.steps are required")
	}

	result := validator.Validate(req.DSL)
	if !result.Valid() {
		return mapStoreError(&validator.Error{Result: result})
	}

	pb := models.Playbook{
		PlaybookID:    req.PlaybookID,
		Version:       1,
		Name:          req.Name,
		Description:   req.Description,
		Enabled:       false,
		DSL:           req.DSL,
		CreatedAt:     time.Now(),
		CreatedBy:     req.CreatedBy,
		ChangeSummary: req.ChangeSummary,
	}
	if err := s.playbooks.CreateVersion(c.Request().Context(), pb, false); err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusCreated, pb)
}

// updatePlaybookHandler handles PUT /playbooks/{id}: creates version
// N+1, enabling it (and atomically disabling the previous active
// version) unless the body explicitly sets enabled=false.
func (s *Server) updatePlaybookHandler(c *echo.Context) error {
	playbookID := c.Param("id")
	if playbookID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "playbook id is required")
	}
	var req UpdatePlaybookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.DSL.Steps) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "dsl.steps is required")
	}

	result := validator.Validate(req.DSL)
	if !result.Valid() {
		return mapStoreError(&validator.Error{Result: result})
	}

	versions, err := s.playbooks.ListVersions(c.Request().Context(), playbookID)
	if err != nil {
		return mapStoreError(err)
	}
	if len(versions) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "playbook not found")
	}
	nextVersion := versions[0].Version + 1

	enable := req.Enabled == nil || *req.Enabled
	pb := models.Playbook{
		PlaybookID:    playbookID,
		Version:       nextVersion,
		Name:          req.Name,
		Description:   req.Description,
		Enabled:       enable,
		DSL:           req.DSL,
		CreatedAt:     time.Now(),
		CreatedBy:     req.CreatedBy,
		ChangeSummary: req.ChangeSummary,
	}
	if err := s.playbooks.CreateVersion(c.Request().Context(), pb, enable); err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, pb)
}

// togglePlaybookHandler handles PATCH /playbooks/{id}: flips the
// active version (at most one enabled per playbook_id, enforced by
// PlaybookRepo.SetEnabled).
func (s *Server) togglePlaybookHandler(c *echo.Context) error {
	playbookID := c.Param("id")
	var req TogglePlaybookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Version <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "version is required")
	}
	if err := s.playbooks.SetEnabled(c.Request().Context(), playbookID, req.Version, req.Enabled); err != nil {
		return mapStoreError(err)
	}
	pb, err := s.playbooks.GetVersion(c.Request().Context(), playbookID, req.Version)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, pb)
}

// getPlaybookHandler handles GET /playbooks/{id}, returning the
// currently active version.
func (s *Server) getPlaybookHandler(c *echo.Context) error {
	pb, err := s.playbooks.GetActive(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, pb)
}

// listPlaybookVersionsHandler handles GET /playbooks/{id}/versions.
func (s *Server) listPlaybookVersionsHandler(c *echo.Context) error {
	versions, err := s.playbooks.ListVersions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, versions)
}

// listActivePlaybooksHandler handles GET /playbooks.
func (s *Server) listActivePlaybooksHandler(c *echo.Context) error {
	playbooks, err := s.playbooks.ListActive(c.Request().Context())
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, playbooks)
}
