package api

import (
	"context"
	"time"

	"github.com/soarcore/soarcore/pkg/connector"
	"github.com/soarcore/soarcore/pkg/engine"
	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/store"
	"github.com/soarcore/soarcore/pkg/webhook"
)

type fakePlaybookStore struct {
	versions map[string][]models.Playbook // playbook_id -> versions, newest first
	err      error
}

func newFakePlaybookStore() *fakePlaybookStore {
	return &fakePlaybookStore{versions: make(map[string][]models.Playbook)}
}

func (f *fakePlaybookStore) CreateVersion(ctx context.Context, pb models.Playbook, enable bool) error {
	if f.err != nil {
		return f.err
	}
	for i, existing := range f.versions[pb.PlaybookID] {
		if existing.Version == pb.Version {
			return store.ErrAlreadyExists
		}
		if enable {
			f.versions[pb.PlaybookID][i].Enabled = false
		}
	}
	pb.Enabled = enable && pb.Enabled
	f.versions[pb.PlaybookID] = append([]models.Playbook{pb}, f.versions[pb.PlaybookID]...)
	return nil
}

func (f *fakePlaybookStore) GetActive(ctx context.Context, playbookID string) (models.Playbook, error) {
	for _, pb := range f.versions[playbookID] {
		if pb.Enabled {
			return pb, nil
		}
	}
	return models.Playbook{}, store.ErrNotFound
}

func (f *fakePlaybookStore) GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error) {
	for _, pb := range f.versions[playbookID] {
		if pb.Version == version {
			return pb, nil
		}
	}
	return models.Playbook{}, store.ErrNotFound
}

func (f *fakePlaybookStore) SetEnabled(ctx context.Context, playbookID string, version int, enabled bool) error {
	found := false
	for i, pb := range f.versions[playbookID] {
		if pb.Version == version {
			found = true
			if enabled {
				for j := range f.versions[playbookID] {
					f.versions[playbookID][j].Enabled = false
				}
			}
			f.versions[playbookID][i].Enabled = enabled
		}
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (f *fakePlaybookStore) ListVersions(ctx context.Context, playbookID string) ([]models.Playbook, error) {
	return f.versions[playbookID], nil
}

func (f *fakePlaybookStore) ListActive(ctx context.Context) ([]models.Playbook, error) {
	var out []models.Playbook
	for _, versions := range f.versions {
		for _, pb := range versions {
			if pb.Enabled {
				out = append(out, pb)
			}
		}
	}
	return out, nil
}

type fakeExecutionStore struct {
	byID      map[string]models.Execution
	listResult store.ListResult
	err       error
}

func newFakeExecutionStore() *fakeExecutionStore {
	return &fakeExecutionStore{byID: make(map[string]models.Execution)}
}

func (f *fakeExecutionStore) Get(ctx context.Context, executionID string) (models.Execution, error) {
	if f.err != nil {
		return models.Execution{}, f.err
	}
	ex, ok := f.byID[executionID]
	if !ok {
		return models.Execution{}, store.ErrNotFound
	}
	return ex, nil
}

func (f *fakeExecutionStore) List(ctx context.Context, p store.ListParams) (store.ListResult, error) {
	if f.err != nil {
		return store.ListResult{}, f.err
	}
	return f.listResult, nil
}

func (f *fakeExecutionStore) Cancel(ctx context.Context, executionID string) (models.Execution, error) {
	if f.err != nil {
		return models.Execution{}, f.err
	}
	ex, ok := f.byID[executionID]
	if !ok {
		return models.Execution{}, store.ErrNotFound
	}
	if ex.State != models.ExecutionExecuting && ex.State != models.ExecutionWaitingApproval {
		return models.Execution{}, store.ErrNotCancellable
	}
	ex.State = models.ExecutionCancelled
	f.byID[executionID] = ex
	return ex, nil
}

type fakeApprovalStore struct {
	byID map[string]models.Approval
	err  error
}

func newFakeApprovalStore() *fakeApprovalStore {
	return &fakeApprovalStore{byID: make(map[string]models.Approval)}
}

func (f *fakeApprovalStore) Get(ctx context.Context, approvalID string) (models.Approval, error) {
	ap, ok := f.byID[approvalID]
	if !ok {
		return models.Approval{}, store.ErrNotFound
	}
	return ap, nil
}

func (f *fakeApprovalStore) Decide(ctx context.Context, approvalID string, status models.ApprovalStatus, approvedBy, note string) (models.Approval, error) {
	if f.err != nil {
		return models.Approval{}, f.err
	}
	ap, ok := f.byID[approvalID]
	if !ok {
		return models.Approval{}, store.ErrNotFound
	}
	if ap.Status != models.ApprovalPending {
		return models.Approval{}, store.ErrApprovalNotPending
	}
	ap.Status = status
	ap.ApprovedBy = approvedBy
	ap.DecisionNote = note
	f.byID[approvalID] = ap
	return ap, nil
}

func (f *fakeApprovalStore) ListByExecution(ctx context.Context, executionID string) ([]models.Approval, error) {
	var out []models.Approval
	for _, ap := range f.byID {
		if ap.ExecutionID == executionID {
			out = append(out, ap)
		}
	}
	return out, nil
}

type fakeConnectorStore struct {
	byID map[string]models.Connector
	err  error
}

func newFakeConnectorStore() *fakeConnectorStore {
	return &fakeConnectorStore{byID: make(map[string]models.Connector)}
}

func (f *fakeConnectorStore) Create(ctx context.Context, c models.Connector) error {
	if f.err != nil {
		return f.err
	}
	if _, exists := f.byID[c.ConnectorID]; exists {
		return store.ErrAlreadyExists
	}
	f.byID[c.ConnectorID] = c
	return nil
}

func (f *fakeConnectorStore) Get(ctx context.Context, connectorID string) (models.Connector, error) {
	c, ok := f.byID[connectorID]
	if !ok {
		return models.Connector{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeConnectorStore) Save(ctx context.Context, c models.Connector) error {
	if _, ok := f.byID[c.ConnectorID]; !ok {
		return store.ErrNotFound
	}
	f.byID[c.ConnectorID] = c
	return nil
}

func (f *fakeConnectorStore) List(ctx context.Context) ([]models.Connector, error) {
	var out []models.Connector
	for _, c := range f.byID {
		out = append(out, c)
	}
	return out, nil
}

type fakeStarter struct {
	executionID string
	err         error
	lastSource  string
}

func (f *fakeStarter) Start(ctx context.Context, pb models.Playbook, triggerData map[string]any, source string) (string, error) {
	f.lastSource = source
	if f.err != nil {
		return "", f.err
	}
	return f.executionID, nil
}

type fakeResumer struct {
	called   chan struct{}
	decision engine.Decision
	err      error
}

func newFakeResumer() *fakeResumer {
	return &fakeResumer{called: make(chan struct{}, 1)}
}

func (f *fakeResumer) Resume(ctx context.Context, ex models.Execution, pb models.Playbook, decision engine.Decision, approvedBy, note string) (models.Execution, error) {
	f.decision = decision
	f.called <- struct{}{}
	return ex, f.err
}

type fakeInvoker struct {
	output map[string]any
	cerr   *connector.Error
}

func (f *fakeInvoker) Invoke(ctx context.Context, connectorRef, actionType string, inputs map[string]any, timeout time.Duration) (map[string]any, *connector.Error) {
	return f.output, f.cerr
}

type fakeIngress struct {
	result *webhook.Result
	err    *webhook.Error
}

func (f *fakeIngress) Ingest(ctx context.Context, req webhook.Request) (*webhook.Result, *webhook.Error) {
	return f.result, f.err
}

type fakeHealthStore struct {
	status *store.HealthStatus
	err    error
}

func (f *fakeHealthStore) Health(ctx context.Context) (*store.HealthStatus, error) {
	if f.err != nil {
		return &store.HealthStatus{Status: "unhealthy"}, f.err
	}
	return f.status, nil
}
