package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soarcore/soarcore/pkg/models"
)

// PlaybookRepo persists playbook versions, enforcing invariants V1-V3 of
// §3.1 (single active version, append-only, non-empty steps).
type PlaybookRepo struct {
	pool *pgxpool.Pool
}

// CreateVersion inserts the next version of a playbook. If enable is
// true, it atomically disables every other version for the same
// playbook_id first (V1). Callers are expected to have already run
// pkg/validator and rejected empty-step DSLs (V3) before reaching here.
func (r *PlaybookRepo) CreateVersion(ctx context.Context, pb models.Playbook, enable bool) error {
	if len(pb.DSL.Steps) == 0 {
		return fmt.Errorf("%w: dsl.steps must be non-empty", ErrConcurrentModification)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if enable {
		if _, err := tx.Exec(ctx, `UPDATE playbooks SET enabled = false WHERE playbook_id = $1`, pb.PlaybookID); err != nil {
			return fmt.Errorf("disable prior versions: %w", err)
		}
	}

	data, err := json.Marshal(pb)
	if err != nil {
		return fmt.Errorf("marshal playbook: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO playbooks (playbook_id, version, enabled, data) VALUES ($1, $2, $3, $4)`,
		pb.PlaybookID, pb.Version, enable && pb.Enabled, data)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert playbook version: %w", err)
	}

	return tx.Commit(ctx)
}

// GetActive returns the single enabled version for a playbook_id, or
// ErrNotFound if none is enabled.
func (r *PlaybookRepo) GetActive(ctx context.Context, playbookID string) (models.Playbook, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT data FROM playbooks WHERE playbook_id = $1 AND enabled LIMIT 1`, playbookID)
	return scanPlaybook(row)
}

// GetVersion returns a specific, possibly inactive, version (§3.1 V2:
// executions stay bound to the exact version they started with).
func (r *PlaybookRepo) GetVersion(ctx context.Context, playbookID string, version int) (models.Playbook, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT data FROM playbooks WHERE playbook_id = $1 AND version = $2`, playbookID, version)
	return scanPlaybook(row)
}

// SetEnabled toggles a playbook's active version (enabling one version
// atomically disables the rest, same as CreateVersion's enable path).
func (r *PlaybookRepo) SetEnabled(ctx context.Context, playbookID string, version int, enabled bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if enabled {
		if _, err := tx.Exec(ctx, `UPDATE playbooks SET enabled = false WHERE playbook_id = $1`, playbookID); err != nil {
			return fmt.Errorf("disable prior versions: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE playbooks SET enabled = $1 WHERE playbook_id = $2 AND version = $3`,
		enabled, playbookID, version)
	if err != nil {
		return fmt.Errorf("update enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// ListVersions returns every version of a playbook, newest first.
func (r *PlaybookRepo) ListVersions(ctx context.Context, playbookID string) ([]models.Playbook, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM playbooks WHERE playbook_id = $1 ORDER BY version DESC`, playbookID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []models.Playbook
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan playbook: %w", err)
		}
		var pb models.Playbook
		if err := json.Unmarshal(data, &pb); err != nil {
			return nil, fmt.Errorf("unmarshal playbook: %w", err)
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

// ListActive returns every playbook's currently enabled version.
func (r *PlaybookRepo) ListActive(ctx context.Context) ([]models.Playbook, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM playbooks WHERE enabled ORDER BY playbook_id`)
	if err != nil {
		return nil, fmt.Errorf("query active playbooks: %w", err)
	}
	defer rows.Close()

	var out []models.Playbook
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan playbook: %w", err)
		}
		var pb models.Playbook
		if err := json.Unmarshal(data, &pb); err != nil {
			return nil, fmt.Errorf("unmarshal playbook: %w", err)
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

func scanPlaybook(row pgx.Row) (models.Playbook, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playbook{}, ErrNotFound
		}
		return models.Playbook{}, fmt.Errorf("scan playbook: %w", err)
	}
	var pb models.Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return models.Playbook{}, fmt.Errorf("unmarshal playbook: %w", err)
	}
	return pb, nil
}
