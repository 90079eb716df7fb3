// Package api maps inbound HTTP (§6) onto the core packages: CRUD for
// playbooks, executions, approvals and connectors, plus the webhook
// ingress POST. It does no business logic of its own — every handler is
// a thin bind/validate/call/translate shim over a narrow interface
// satisfied by the concrete *store.*Repo / pkg/* types.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soarcore/soarcore/pkg/connector"
	"github.com/soarcore/soarcore/pkg/engine"
	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/queue"
	"github.com/soarcore/soarcore/pkg/store"
	"github.com/soarcore/soarcore/pkg/version"
	"github.com/soarcore/soarcore/pkg/webhook"
)

// PlaybookStore is the subset of *store.PlaybookRepo the API needs.
type PlaybookStore interface {
	CreateVersion(ctx context.Context, pb models.Playbook, enable bool) error
	GetActive(ctx context.Context, playbookID string) (models.Playbook, error)
	GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error)
	SetEnabled(ctx context.Context, playbookID string, version int, enabled bool) error
	ListVersions(ctx context.Context, playbookID string) ([]models.Playbook, error)
	ListActive(ctx context.Context) ([]models.Playbook, error)
}

// ExecutionStore is the subset of *store.ExecutionRepo the API needs.
type ExecutionStore interface {
	Get(ctx context.Context, executionID string) (models.Execution, error)
	List(ctx context.Context, p store.ListParams) (store.ListResult, error)
	Cancel(ctx context.Context, executionID string) (models.Execution, error)
}

// ApprovalStore is the subset of *store.ApprovalRepo the API needs.
type ApprovalStore interface {
	Get(ctx context.Context, approvalID string) (models.Approval, error)
	Decide(ctx context.Context, approvalID string, status models.ApprovalStatus, approvedBy, note string) (models.Approval, error)
	ListByExecution(ctx context.Context, executionID string) ([]models.Approval, error)
}

// ConnectorStore is the subset of *store.ConnectorRepo the API needs.
type ConnectorStore interface {
	Create(ctx context.Context, c models.Connector) error
	Get(ctx context.Context, connectorID string) (models.Connector, error)
	Save(ctx context.Context, c models.Connector) error
	List(ctx context.Context) ([]models.Connector, error)
}

// ExecutionStarter is the subset of *queue.Starter the API needs, to
// start a manually-created execution without going through webhook
// ingress.
type ExecutionStarter interface {
	Start(ctx context.Context, pb models.Playbook, triggerData map[string]any, source string) (string, error)
}

// Resumer is the subset of *engine.Engine the API needs to apply an
// approval decision.
type Resumer interface {
	Resume(ctx context.Context, ex models.Execution, pb models.Playbook, decision engine.Decision, approvedBy, note string) (models.Execution, error)
}

// ConnectorInvoker is the subset of *connector.Invoker the API needs to
// back POST /connectors/{id}/test.
type ConnectorInvoker interface {
	Invoke(ctx context.Context, connectorRef, actionType string, inputs map[string]any, timeout time.Duration) (map[string]any, *connector.Error)
}

// Ingress is the subset of *webhook.Ingress the API needs.
type Ingress interface {
	Ingest(ctx context.Context, req webhook.Request) (*webhook.Result, *webhook.Error)
}

// HealthStore reports database connectivity for the /health endpoint.
type HealthStore interface {
	Health(ctx context.Context) (*store.HealthStatus, error)
}

// WorkerPoolHealth reports worker pool health for the /health endpoint.
type WorkerPoolHealth interface {
	Health() queue.PoolHealth
}

// Server is the HTTP API server, wiring echo/v5 over the narrow
// interfaces above. Grounded on the teacher's pkg/api.Server, adapted
// from its services-layer dependencies to this repo's direct-repo
// accept-narrow-interfaces idiom.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	playbooks  PlaybookStore
	executions ExecutionStore
	approvals  ApprovalStore
	connectors ConnectorStore
	starter    ExecutionStarter
	resumer    Resumer
	invoker    ConnectorInvoker
	ingress    Ingress

	dbHealth   HealthStore
	workerPool WorkerPoolHealth
	metrics    MetricsRegisterer

	defaultStepTimeout time.Duration
}

// MetricsRegisterer is satisfied by *metrics.Registry.
type MetricsRegisterer interface {
	Registerer() *prometheus.Registry
}

// NewServer creates a new API server with echo/v5 and registers every
// route. Optional collaborators (workerPool, metrics) may be nil; the
// health and metrics endpoints degrade gracefully when they are.
func NewServer(
	playbooks PlaybookStore,
	executions ExecutionStore,
	approvals ApprovalStore,
	connectors ConnectorStore,
	starter ExecutionStarter,
	resumer Resumer,
	invoker ConnectorInvoker,
	ingress Ingress,
	dbHealth HealthStore,
	defaultStepTimeout time.Duration,
) *Server {
	e := echo.New()

	s := &Server{
		echo:               e,
		playbooks:          playbooks,
		executions:         executions,
		approvals:          approvals,
		connectors:         connectors,
		starter:            starter,
		resumer:            resumer,
		invoker:            invoker,
		ingress:            ingress,
		dbHealth:           dbHealth,
		defaultStepTimeout: defaultStepTimeout,
	}

	s.setupRoutes()
	return s
}

// SetWorkerPool wires the worker pool health into GET /health.
func (s *Server) SetWorkerPool(pool WorkerPoolHealth) {
	s.workerPool = pool
}

// SetMetrics wires a Prometheus gatherer for GET /metrics. Takes the
// concrete registerer function rather than a typed registry so this
// package does not need to import pkg/metrics (which itself imports
// pkg/webhook — keeping that edge one-directional).
func (s *Server) SetMetrics(m MetricsRegisterer) {
	s.metrics = m
}

// ValidateWiring checks that every required collaborator was supplied
// to NewServer, so a wiring gap is caught at startup rather than
// surfacing as a nil-pointer panic at request time.
func (s *Server) ValidateWiring() error {
	var errs []error
	if s.playbooks == nil {
		errs = append(errs, fmt.Errorf("playbooks store not set"))
	}
	if s.executions == nil {
		errs = append(errs, fmt.Errorf("executions store not set"))
	}
	if s.approvals == nil {
		errs = append(errs, fmt.Errorf("approvals store not set"))
	}
	if s.connectors == nil {
		errs = append(errs, fmt.Errorf("connectors store not set"))
	}
	if s.starter == nil {
		errs = append(errs, fmt.Errorf("execution starter not set"))
	}
	if s.resumer == nil {
		errs = append(errs, fmt.Errorf("resumer not set"))
	}
	if s.invoker == nil {
		errs = append(errs, fmt.Errorf("connector invoker not set"))
	}
	if s.ingress == nil {
		errs = append(errs, fmt.Errorf("webhook ingress not set"))
	}
	if s.dbHealth == nil {
		errs = append(errs, fmt.Errorf("db health store not set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(middleware.BodyLimit(4 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", s.metricsHandler)

	s.echo.POST("/webhook/:webhook_id", s.webhookIngestHandler)

	s.echo.POST("/playbooks", s.createPlaybookHandler)
	s.echo.GET("/playbooks", s.listActivePlaybooksHandler)
	s.echo.GET("/playbooks/:id", s.getPlaybookHandler)
	s.echo.GET("/playbooks/:id/versions", s.listPlaybookVersionsHandler)
	s.echo.PUT("/playbooks/:id", s.updatePlaybookHandler)
	s.echo.PATCH("/playbooks/:id", s.togglePlaybookHandler)

	s.echo.GET("/executions", s.listExecutionsHandler)
	s.echo.POST("/executions", s.createExecutionHandler)
	s.echo.GET("/executions/:id", s.getExecutionHandler)
	s.echo.PATCH("/executions/:id/cancel", s.cancelExecutionHandler)

	s.echo.POST("/approvals/:id/approve", s.approveHandler)
	s.echo.POST("/approvals/:id/reject", s.rejectHandler)

	s.echo.GET("/connectors", s.listConnectorsHandler)
	s.echo.POST("/connectors", s.createConnectorHandler)
	s.echo.GET("/connectors/:id", s.getConnectorHandler)
	s.echo.PATCH("/connectors/:id", s.toggleConnectorHandler)
	s.echo.POST("/connectors/:id/test", s.testConnectorHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health, combining store health with
// worker pool health the way §6's "Configuration ... read at startup"
// companion health surface is expected to.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := s.dbHealth.Health(reqCtx)
	resp := HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
		Store:   dbHealth,
	}
	status := http.StatusOK
	if err != nil {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if s.workerPool != nil {
		ph := s.workerPool.Health()
		resp.WorkerPool = &ph
	}
	return c.JSON(status, resp)
}

func (s *Server) metricsHandler(c *echo.Context) error {
	if s.metrics == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "metrics not configured")
	}
	promhttp.HandlerFor(s.metrics.Registerer(), promhttp.HandlerOpts{}).ServeHTTP(c.Response(), c.Request())
	return nil
}
