// Package connector implements the Connector Invoker of §4.5: lookup,
// active check, input schema validation, a timeout-raced call through a
// per-connector circuit breaker, and normalized error handling.
package connector

import (
	"context"

	"github.com/soarcore/soarcore/pkg/models"
)

// Implementation is the contract every connector backend satisfies.
// Execute must return a *Error (never a bare error) on failure so the
// invoker never has to guess at retryability.
type Implementation interface {
	Execute(ctx context.Context, actionType string, inputs map[string]any) (map[string]any, *Error)
}

// Registry holds the configured connectors and their backend
// implementations, keyed by connector_id.
type Registry struct {
	records map[string]models.Connector
	impls   map[string]Implementation
}

// NewRegistry builds an empty registry; connectors are added with Register.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]models.Connector),
		impls:   make(map[string]Implementation),
	}
}

// Register binds a connector record to its backend implementation.
func (r *Registry) Register(rec models.Connector, impl Implementation) {
	r.records[rec.ConnectorID] = rec
	r.impls[rec.ConnectorID] = impl
}

// Lookup resolves a connector by id, falling back to type, then to name
// (§4.5 "Lookup: by connector_id, else by connector type, else by name").
func (r *Registry) Lookup(ref string) (models.Connector, Implementation, bool) {
	if rec, ok := r.records[ref]; ok {
		return rec, r.impls[ref], true
	}
	for id, rec := range r.records {
		if rec.Type == ref {
			return rec, r.impls[id], true
		}
	}
	for id, rec := range r.records {
		if rec.Name == ref {
			return rec, r.impls[id], true
		}
	}
	return models.Connector{}, nil, false
}

// Update replaces a connector's stored record (e.g. after a stats update
// or an active/inactive toggle), leaving its implementation untouched.
func (r *Registry) Update(rec models.Connector) {
	r.records[rec.ConnectorID] = rec
}

// Get returns the stored record for id without the type/name fallback.
func (r *Registry) Get(id string) (models.Connector, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// All returns every registered connector record.
func (r *Registry) All() []models.Connector {
	out := make([]models.Connector, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
