// Package sla is the SLA & health monitor of §4.7 (C7): it stamps new
// executions with a resolved SLA policy, evaluates breach status at the
// engine's natural boundaries, sweeps timed-out approvals, and tracks
// platform health counters.
package sla

import (
	"context"

	"github.com/soarcore/soarcore/pkg/models"
)

// PolicyStore is the subset of *store.SLAPolicyRepo the selector needs.
type PolicyStore interface {
	Get(ctx context.Context, scopeKind, scopeRef string) (models.SLAPolicy, error)
}

// Selector resolves the scope-ordered SLA policy of §4.7: playbook ->
// severity -> global default. Default is always available, seeded from
// config.SLAConfig at boot if the operator never configured one.
type Selector struct {
	policies PolicyStore
	fallback models.SLAPolicy
}

// NewSelector builds a Selector. fallback is used only if the store has
// no "default" scope policy configured at all.
func NewSelector(policies PolicyStore, fallback models.SLAPolicy) *Selector {
	return &Selector{policies: policies, fallback: fallback}
}

// Select resolves the policy to apply to a new execution. severity may be
// empty when the trigger payload carries none, in which case the
// severity tier is skipped.
func (s *Selector) Select(ctx context.Context, playbookID, severity string) models.SLAPolicy {
	if playbookID != "" {
		if p, err := s.policies.Get(ctx, "playbook", playbookID); err == nil {
			return p
		}
	}
	if severity != "" {
		if p, err := s.policies.Get(ctx, "severity", severity); err == nil {
			return p
		}
	}
	if p, err := s.policies.Get(ctx, "default", ""); err == nil {
		return p
	}
	return s.fallback
}

// Assign stamps ex with the resolved policy's thresholds, zeroing any
// previously computed actuals. Called once, at execution creation.
func (s *Selector) Assign(ctx context.Context, ex *models.Execution, severity string) {
	policy := s.Select(ctx, ex.PlaybookID, severity)
	ex.SLAPolicyID = policy.PolicyID
	ex.SLAStatus = &models.SLAStatus{
		Acknowledge: models.SLADimension{ThresholdMS: policy.AcknowledgeMS},
		Containment: models.SLADimension{ThresholdMS: policy.ContainmentMS},
		Resolution:  models.SLADimension{ThresholdMS: policy.ResolutionMS},
	}
}
