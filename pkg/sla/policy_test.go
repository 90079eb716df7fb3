package sla

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soarcore/soarcore/pkg/models"
)

type fakePolicies struct {
	byScope map[string]models.SLAPolicy // "kind:ref"
}

func (f *fakePolicies) Get(ctx context.Context, scopeKind, scopeRef string) (models.SLAPolicy, error) {
	p, ok := f.byScope[scopeKind+":"+scopeRef]
	if !ok {
		return models.SLAPolicy{}, errors.New("not found")
	}
	return p, nil
}

func TestSelect_PrefersPlaybookScope(t *testing.T) {
	policies := &fakePolicies{byScope: map[string]models.SLAPolicy{
		"playbook:pb-1": {PolicyID: "p-playbook", AcknowledgeMS: 1000},
		"severity:high": {PolicyID: "p-severity", AcknowledgeMS: 2000},
		"default:":      {PolicyID: "p-default", AcknowledgeMS: 3000},
	}}
	s := NewSelector(policies, models.SLAPolicy{PolicyID: "p-fallback"})

	got := s.Select(context.Background(), "pb-1", "high")
	assert.Equal(t, "p-playbook", got.PolicyID)
}

func TestSelect_FallsBackToSeverityThenDefault(t *testing.T) {
	policies := &fakePolicies{byScope: map[string]models.SLAPolicy{
		"severity:high": {PolicyID: "p-severity"},
		"default:":      {PolicyID: "p-default"},
	}}
	s := NewSelector(policies, models.SLAPolicy{PolicyID: "p-fallback"})

	got := s.Select(context.Background(), "pb-unconfigured", "high")
	assert.Equal(t, "p-severity", got.PolicyID)

	got = s.Select(context.Background(), "pb-unconfigured", "unconfigured-severity")
	assert.Equal(t, "p-default", got.PolicyID)
}

func TestSelect_UsesFallbackWhenStoreHasNothing(t *testing.T) {
	s := NewSelector(&fakePolicies{byScope: map[string]models.SLAPolicy{}}, models.SLAPolicy{PolicyID: "p-fallback"})
	got := s.Select(context.Background(), "pb-1", "high")
	assert.Equal(t, "p-fallback", got.PolicyID)
}

func TestAssign_StampsThresholdsWithZeroActuals(t *testing.T) {
	policies := &fakePolicies{byScope: map[string]models.SLAPolicy{
		"playbook:pb-1": {PolicyID: "p-1", AcknowledgeMS: 60_000, ContainmentMS: 300_000, ResolutionMS: 3_600_000},
	}}
	s := NewSelector(policies, models.SLAPolicy{})
	ex := &models.Execution{PlaybookID: "pb-1"}

	s.Assign(context.Background(), ex, "high")

	require.NotNil(t, ex.SLAStatus)
	assert.Equal(t, "p-1", ex.SLAPolicyID)
	assert.Equal(t, int64(60_000), ex.SLAStatus.Acknowledge.ThresholdMS)
	assert.Equal(t, int64(300_000), ex.SLAStatus.Containment.ThresholdMS)
	assert.Equal(t, int64(3_600_000), ex.SLAStatus.Resolution.ThresholdMS)
	assert.False(t, ex.SLAStatus.Acknowledge.Breached)
}
