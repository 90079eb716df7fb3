package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soarcore/soarcore/pkg/models"
)

// AuditRepo appends audit events (§3.6/§6). Writes are append-only;
// there is no update or delete path.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// Append inserts one audit event. executionID/playbookID may be empty
// for events not scoped to either (e.g. connector registration).
func (r *AuditRepo) Append(ctx context.Context, executionID, playbookID string, ev models.AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	var execID, pbID any
	if executionID != "" {
		execID = executionID
	}
	if playbookID != "" {
		pbID = playbookID
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_events (execution_id, playbook_id, action, outcome, data) VALUES ($1, $2, $3, $4, $5)`,
		execID, pbID, ev.Action, ev.Outcome, data)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByExecution returns every audit event for an execution, oldest
// first.
func (r *AuditRepo) ListByExecution(ctx context.Context, executionID string) ([]models.AuditEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM audit_events WHERE execution_id = $1 ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var ev models.AuditEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
