package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/models"
	"github.com/soarcore/soarcore/pkg/validator"
)

type fakeExecutionCreator struct {
	created models.Execution
	err     error
}

func (f *fakeExecutionCreator) Create(ctx context.Context, ex models.Execution) error {
	f.created = ex
	return f.err
}

type fakeSLAAssigner struct {
	calledWith string
}

func (f *fakeSLAAssigner) Assign(ctx context.Context, ex *models.Execution, severity string) {
	f.calledWith = severity
	ex.SLAPolicyID = "policy-from-test"
}

func TestStarter_Start_CreatesExecutingExecutionWithPendingSteps(t *testing.T) {
	creator := &fakeExecutionCreator{}
	s := NewStarter(creator, nil)
	pb := models.Playbook{
		PlaybookID: "pb-1",
		Version:    3,
		DSL:        models.DSL{Steps: []models.Step{{StepID: "s1"}, {StepID: "s2"}}},
	}

	id, err := s.Start(context.Background(), pb, map[string]any{"foo": "bar"}, "webhook")

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, creator.created.ExecutionID)
	assert.Equal(t, "pb-1", creator.created.PlaybookID)
	assert.Equal(t, 3, creator.created.PlaybookVersion)
	assert.Equal(t, models.ExecutionExecuting, creator.created.State)
	assert.Equal(t, "webhook", creator.created.TriggerSource)
	require.Len(t, creator.created.Steps, 2)
	assert.Equal(t, models.StepPending, creator.created.Steps[0].State)
	assert.Equal(t, models.StepPending, creator.created.Steps[1].State)
	assert.NotNil(t, creator.created.StartedAt)
}

func TestStarter_Start_AssignsSLAFromSeverity(t *testing.T) {
	creator := &fakeExecutionCreator{}
	assigner := &fakeSLAAssigner{}
	s := NewStarter(creator, assigner)
	pb := models.Playbook{PlaybookID: "pb-1", Version: 1, DSL: models.DSL{Steps: []models.Step{{StepID: "s1"}}}}

	_, err := s.Start(context.Background(), pb, map[string]any{"rule": map[string]any{"level": float64(10)}}, "webhook")

	require.NoError(t, err)
	assert.Equal(t, "10", assigner.calledWith)
	assert.Equal(t, "policy-from-test", creator.created.SLAPolicyID)
}

func TestStarter_Start_FallsBackThroughSeverityPaths(t *testing.T) {
	cases := []struct {
		name     string
		trigger  map[string]any
		expected string
	}{
		{"top level severity string", map[string]any{"severity": "high"}, "high"},
		{"nested data.severity", map[string]any{"data": map[string]any{"severity": "critical"}}, "critical"},
		{"no severity signal at all", map[string]any{"unrelated": "value"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assigner := &fakeSLAAssigner{}
			s := NewStarter(&fakeExecutionCreator{}, assigner)
			pb := models.Playbook{PlaybookID: "pb-1", DSL: models.DSL{Steps: []models.Step{{StepID: "s1"}}}}
			_, err := s.Start(context.Background(), pb, tc.trigger, "webhook")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, assigner.calledWith)
		})
	}
}

func TestStarter_Start_PropagatesCreateError(t *testing.T) {
	creator := &fakeExecutionCreator{err: assertError{"boom"}}
	s := NewStarter(creator, nil)
	pb := models.Playbook{PlaybookID: "pb-1", DSL: models.DSL{Steps: []models.Step{{StepID: "s1"}}}}

	_, err := s.Start(context.Background(), pb, nil, "webhook")

	assert.Error(t, err)
}

func TestStarter_Start_RejectsInvalidDSL(t *testing.T) {
	creator := &fakeExecutionCreator{}
	s := NewStarter(creator, nil)
	pb := models.Playbook{PlaybookID: "pb-1", Version: 1, DSL: models.DSL{}}

	_, err := s.Start(context.Background(), pb, nil, "webhook")

	require.Error(t, err)
	var verr *validator.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validator.CodeNoSteps, verr.Result.Errors[0].Code)
	assert.Empty(t, creator.created.ExecutionID)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
