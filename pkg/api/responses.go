package api

import (
	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/queue"
	"github.com/soarcore/soarcore/pkg/store"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string              `json:"status"`
	Version    string              `json:"version"`
	Store      *store.HealthStatus `json:"store,omitempty"`
	WorkerPool *queue.PoolHealth   `json:"worker_pool,omitempty"`
}

// WebhookIngestResponse is the 202 body of POST /webhook/{id}.
type WebhookIngestResponse struct {
	ExecutionID string `json:"execution_id"`
}

// WebhookRejectResponse is the body of every non-2xx ingress response.
type WebhookRejectResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RetryAfter  int    `json:"retry_after,omitempty"`
}

// ListExecutionsResponse is returned by GET /executions.
type ListExecutionsResponse struct {
	Executions []models.Execution `json:"executions"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}

// CreateExecutionResponse is returned by POST /executions.
type CreateExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
}

// TestConnectorResponse is returned by POST /connectors/{id}/test.
type TestConnectorResponse struct {
	OK     bool           `json:"ok"`
	Output map[string]any `json:"output,omitempty"`
	Error  *ConnectorErrorResponse `json:"error,omitempty"`
}

// ConnectorErrorResponse flattens a *connector.Error for the wire.
type ConnectorErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
