package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soarcore/soarcore/pkg/models"
)

// SLAPolicyRepo persists the SLA policies of §4.7. models.SLAPolicy.Scope
// already encodes the scope kind and reference ("playbook:<id>",
// "severity:<level>", "default"); scope/scope_ref split it into two
// indexed columns so pkg/sla can look a policy up directly instead of
// scanning every row.
type SLAPolicyRepo struct {
	pool *pgxpool.Pool
}

func splitScope(scope string) (kind, ref string) {
	kind, ref, found := strings.Cut(scope, ":")
	if !found {
		return scope, ""
	}
	return kind, ref
}

// Upsert creates or replaces the policy identified by p.PolicyID.
func (r *SLAPolicyRepo) Upsert(ctx context.Context, p models.SLAPolicy) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal sla policy: %w", err)
	}
	kind, ref := splitScope(p.Scope)
	_, err = r.pool.Exec(ctx,
		`INSERT INTO sla_policies (sla_policy_id, scope, scope_ref, data) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (sla_policy_id) DO UPDATE SET scope = EXCLUDED.scope, scope_ref = EXCLUDED.scope_ref, data = EXCLUDED.data`,
		p.PolicyID, kind, ref, data)
	if err != nil {
		return fmt.Errorf("upsert sla policy: %w", err)
	}
	return nil
}

// Get returns the policy bound to the exact scope kind/ref pair, e.g.
// Get(ctx, "playbook", "pb-1") or Get(ctx, "default", "").
func (r *SLAPolicyRepo) Get(ctx context.Context, scopeKind, scopeRef string) (models.SLAPolicy, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT data FROM sla_policies WHERE scope = $1 AND scope_ref = $2`, scopeKind, scopeRef)
	return scanSLAPolicy(row)
}

// List returns every configured policy, ordered by policy id.
func (r *SLAPolicyRepo) List(ctx context.Context) ([]models.SLAPolicy, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM sla_policies ORDER BY sla_policy_id`)
	if err != nil {
		return nil, fmt.Errorf("query sla policies: %w", err)
	}
	defer rows.Close()

	var out []models.SLAPolicy
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan sla policy: %w", err)
		}
		var p models.SLAPolicy
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal sla policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSLAPolicy(row pgx.Row) (models.SLAPolicy, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SLAPolicy{}, ErrNotFound
		}
		return models.SLAPolicy{}, fmt.Errorf("scan sla policy: %w", err)
	}
	var p models.SLAPolicy
	if err := json.Unmarshal(data, &p); err != nil {
		return models.SLAPolicy{}, fmt.Errorf("unmarshal sla policy: %w", err)
	}
	return p, nil
}
