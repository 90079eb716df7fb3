package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/soarcore/soarcore/pkg/jsonpath"
	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/store"
)

// severityPaths mirrors pkg/queue.Starter's severity fallback chain, and
// ruleIDPaths follows the same shape for rule_id. Neither is an indexed
// column, so listExecutionsHandler
// applies them as a post-query filter over trigger_data (§6).
var (
	severityPaths = []string{"rule.level", "severity", "data.severity"}
	ruleIDPaths   = []string{"rule.id", "rule_id", "data.rule_id"}
)

// listExecutionsHandler handles GET /executions (§6: filters by state,
// playbook_id, severity, rule_id, time range, pagination, sort).
func (s *Server) listExecutionsHandler(c *echo.Context) error {
	params := store.ListParams{SortBy: "created_at", SortDesc: true, Page: 1, PageSize: 25}

	if v := c.QueryParam("state"); v != "" {
		params.State = models.ExecutionState(v)
	}
	params.PlaybookID = c.QueryParam("playbook_id")

	if v := c.QueryParam("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			params.Page = p
		}
	}
	if v := c.QueryParam("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			params.PageSize = ps
		}
	}
	if v := c.QueryParam("sort_by"); v != "" {
		switch v {
		case "created_at", "updated_at":
			params.SortBy = v
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sort_by: must be created_at or updated_at")
		}
	}
	if v := c.QueryParam("sort_order"); v != "" {
		switch v {
		case "asc":
			params.SortDesc = false
		case "desc":
			params.SortDesc = true
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sort_order: must be asc or desc")
		}
	}
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since: must be RFC3339")
		}
		params.Since = &t
	}
	if v := c.QueryParam("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid until: must be RFC3339")
		}
		params.Until = &t
	}

	result, err := s.executions.List(c.Request().Context(), params)
	if err != nil {
		return mapStoreError(err)
	}

	severity := c.QueryParam("severity")
	ruleID := c.QueryParam("rule_id")
	if severity != "" || ruleID != "" {
		filtered := result.Executions[:0]
		for _, ex := range result.Executions {
			if severity != "" && !matchesAny(ex.TriggerData, severityPaths, severity) {
				continue
			}
			if ruleID != "" && !matchesAny(ex.TriggerData, ruleIDPaths, ruleID) {
				continue
			}
			filtered = append(filtered, ex)
		}
		result.Executions = filtered
	}

	return c.JSON(http.StatusOK, ListExecutionsResponse{
		Executions: result.Executions,
		Total:      result.Total,
		Page:       params.Page,
		PageSize:   params.PageSize,
	})
}

func matchesAny(triggerData map[string]any, paths []string, want string) bool {
	for _, p := range paths {
		r := jsonpath.Resolve(triggerData, p)
		if r.Found && fmt.Sprintf("%v", r.Value) == want {
			return true
		}
	}
	return false
}

// getExecutionHandler handles GET /executions/{id}.
func (s *Server) getExecutionHandler(c *echo.Context) error {
	ex, err := s.executions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, ex)
}

// createExecutionHandler handles POST /executions: a manual start
// bypassing webhook ingress (§6).
func (s *Server) createExecutionHandler(c *echo.Context) error {
	var req CreateExecutionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PlaybookID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "playbook_id is required")
	}

	ctx := c.Request().Context()
	pb, err := s.playbooks.GetActive(ctx, req.PlaybookID)
	if err != nil {
		return mapStoreError(err)
	}

	source := req.TriggerSource
	if source == "" {
		source = "manual"
	}
	executionID, err := s.starter.Start(ctx, pb, req.TriggerData, source)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusAccepted, CreateExecutionResponse{ExecutionID: executionID})
}

// cancelExecutionHandler handles PATCH /executions/{id}/cancel.
func (s *Server) cancelExecutionHandler(c *echo.Context) error {
	ex, err := s.executions.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, ex)
}
