package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/models"
)

type fakeStore struct {
	appended []models.AuditEvent
	err      error
}

func (f *fakeStore) Append(ctx context.Context, executionID, playbookID string, ev models.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, ev)
	return nil
}

func TestRecord_MasksSensitiveDetails(t *testing.T) {
	store := &fakeStore{}
	s := New(store, nil)

	s.Record(context.Background(), "ex-1", "pb-1", models.AuditEvent{
		Action:  models.ActionStepCompleted,
		Details: map[string]any{"token": "shh", "connector_id": "c1"},
	})

	require.Len(t, store.appended, 1)
	assert.Equal(t, "***", store.appended[0].Details["token"])
	assert.Equal(t, "c1", store.appended[0].Details["connector_id"])
}

func TestRecord_NeverPropagatesStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	s := New(store, nil)

	assert.NotPanics(t, func() {
		s.Record(context.Background(), "ex-1", "pb-1", models.AuditEvent{Action: models.ActionExecutionFailed})
	})
}
