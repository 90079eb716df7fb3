package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/store"
)

type fakeExecutionStore struct {
	mu       sync.Mutex
	queue    []models.Execution
	claimErr error
	saved    []models.Execution
	released []string
	renewed  int
}

func (f *fakeExecutionStore) ClaimNext(ctx context.Context, owner string, leaseFor time.Duration) (models.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return models.Execution{}, f.claimErr
	}
	if len(f.queue) == 0 {
		return models.Execution{}, store.ErrNotFound
	}
	ex := f.queue[0]
	f.queue = f.queue[1:]
	return ex, nil
}

func (f *fakeExecutionStore) Renew(ctx context.Context, executionID, owner string, leaseFor time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewed++
	return nil
}

func (f *fakeExecutionStore) Release(ctx context.Context, executionID, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, executionID)
	return nil
}

func (f *fakeExecutionStore) Save(ctx context.Context, ex models.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, ex)
	return nil
}

type fakePlaybookStore struct {
	pb  models.Playbook
	err error
}

func (f *fakePlaybookStore) GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error) {
	return f.pb, f.err
}

type fakeRunner struct {
	result models.Execution
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, ex models.Execution) (models.Execution, error) {
	if f.result.ExecutionID == "" {
		f.result = ex
	}
	f.result.State = models.ExecutionCompleted
	return f.result, f.err
}

func TestWorker_PollAndProcess_NoExecutionsReturnsSentinel(t *testing.T) {
	w := NewWorker("w1", "owner-1", &fakeExecutionStore{}, &fakePlaybookStore{}, &fakeRunner{}, time.Second, time.Millisecond, nil)

	err := w.pollAndProcess(context.Background())

	assert.ErrorIs(t, err, ErrNoExecutionsAvailable)
}

func TestWorker_PollAndProcess_RunsClaimedExecutionAndReleases(t *testing.T) {
	executions := &fakeExecutionStore{queue: []models.Execution{{ExecutionID: "ex-1", PlaybookID: "pb-1", PlaybookVersion: 1}}}
	playbooks := &fakePlaybookStore{pb: models.Playbook{PlaybookID: "pb-1", Version: 1}}
	runner := &fakeRunner{}
	w := NewWorker("w1", "owner-1", executions, playbooks, runner, 30*time.Second, time.Millisecond, nil)

	err := w.pollAndProcess(context.Background())

	require.NoError(t, err)
	require.Len(t, executions.saved, 1)
	assert.Equal(t, models.ExecutionCompleted, executions.saved[0].State)
	assert.Equal(t, []string{"ex-1"}, executions.released)
	assert.Equal(t, WorkerIdle, w.Health().Status)
	assert.Equal(t, 1, w.Health().ExecutionsHandled)
}

func TestWorker_PollAndProcess_ReleasesLeaseWhenPlaybookLoadFails(t *testing.T) {
	executions := &fakeExecutionStore{queue: []models.Execution{{ExecutionID: "ex-1", PlaybookID: "pb-1", PlaybookVersion: 1}}}
	playbooks := &fakePlaybookStore{err: errors.New("not found")}
	w := NewWorker("w1", "owner-1", executions, playbooks, &fakeRunner{}, 30*time.Second, time.Millisecond, nil)

	err := w.pollAndProcess(context.Background())

	assert.Error(t, err)
	assert.Equal(t, []string{"ex-1"}, executions.released)
	assert.Empty(t, executions.saved)
}

func TestWorker_PollAndProcess_PropagatesRunError(t *testing.T) {
	executions := &fakeExecutionStore{queue: []models.Execution{{ExecutionID: "ex-1", PlaybookID: "pb-1"}}}
	playbooks := &fakePlaybookStore{pb: models.Playbook{PlaybookID: "pb-1"}}
	runner := &fakeRunner{err: errors.New("engine blew up")}
	w := NewWorker("w1", "owner-1", executions, playbooks, runner, 30*time.Second, time.Millisecond, nil)

	err := w.pollAndProcess(context.Background())

	assert.Error(t, err)
	assert.Equal(t, []string{"ex-1"}, executions.released, "lease must release even when the engine returns an error")
}

func TestWorker_StartStop_GracefulShutdown(t *testing.T) {
	executions := &fakeExecutionStore{}
	w := NewWorker("w1", "owner-1", executions, &fakePlaybookStore{}, &fakeRunner{}, time.Second, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	w.Stop()

	assert.Equal(t, WorkerIdle, w.Health().Status)
}
