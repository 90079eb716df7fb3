package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soarcore/soarcore/pkg/models"
)

// ApprovalRepo persists approval gates (§3.5) and serves the SLA
// monitor's periodic timeout sweep.
type ApprovalRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new pending approval.
func (r *ApprovalRepo) Create(ctx context.Context, ap models.Approval) error {
	data, err := json.Marshal(ap)
	if err != nil {
		return fmt.Errorf("marshal approval: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO approvals (approval_id, execution_id, status, expires_at, data) VALUES ($1, $2, $3, $4, $5)`,
		ap.ApprovalID, ap.ExecutionID, ap.Status, ap.ExpiresAt, data)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// Get returns an approval by id.
func (r *ApprovalRepo) Get(ctx context.Context, approvalID string) (models.Approval, error) {
	row := r.pool.QueryRow(ctx, `SELECT data FROM approvals WHERE approval_id = $1`, approvalID)
	return scanApproval(row)
}

// Decide transitions a pending approval to approved or rejected.
// Returns ErrApprovalNotPending if it has already been decided or
// expired, which callers surface as a conflict rather than retrying.
func (r *ApprovalRepo) Decide(ctx context.Context, approvalID string, status models.ApprovalStatus, approvedBy, note string) (models.Approval, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Approval{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT data FROM approvals WHERE approval_id = $1 FOR UPDATE`, approvalID)
	ap, err := scanApproval(row)
	if err != nil {
		return models.Approval{}, err
	}
	if ap.Status != models.ApprovalPending {
		return models.Approval{}, ErrApprovalNotPending
	}

	now := time.Now()
	ap.Status = status
	ap.ApprovedBy = approvedBy
	ap.ApprovedAt = &now
	ap.DecisionNote = note

	data, err := json.Marshal(ap)
	if err != nil {
		return models.Approval{}, fmt.Errorf("marshal approval: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE approvals SET status = $1, data = $2 WHERE approval_id = $3`,
		status, data, approvalID); err != nil {
		return models.Approval{}, fmt.Errorf("update approval: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Approval{}, fmt.Errorf("commit decision: %w", err)
	}
	return ap, nil
}

// ExpirePast marks every still-pending approval whose expires_at has
// passed as expired, and returns the expired records so the SLA
// monitor's sweep can resume their executions. Grounded on §4.4.6's
// approval-timeout handling and the teacher's cron-driven sweep style.
func (r *ApprovalRepo) ExpirePast(ctx context.Context, now time.Time) ([]models.Approval, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT data FROM approvals WHERE status = $1 AND expires_at < $2 FOR UPDATE SKIP LOCKED`,
		models.ApprovalPending, now)
	if err != nil {
		return nil, fmt.Errorf("query expired approvals: %w", err)
	}
	expired, err := scanApprovals(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range expired {
		expired[i].Status = models.ApprovalExpired
		data, err := json.Marshal(expired[i])
		if err != nil {
			return nil, fmt.Errorf("marshal approval: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE approvals SET status = $1, data = $2 WHERE approval_id = $3`,
			models.ApprovalExpired, data, expired[i].ApprovalID); err != nil {
			return nil, fmt.Errorf("expire approval: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit expiry sweep: %w", err)
	}
	return expired, nil
}

// ListByExecution returns every approval ever raised for an execution.
func (r *ApprovalRepo) ListByExecution(ctx context.Context, executionID string) ([]models.Approval, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM approvals WHERE execution_id = $1 ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query approvals by execution: %w", err)
	}
	defer rows.Close()
	return scanApprovals(rows)
}

func scanApproval(row pgx.Row) (models.Approval, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Approval{}, ErrNotFound
		}
		return models.Approval{}, fmt.Errorf("scan approval: %w", err)
	}
	var ap models.Approval
	if err := json.Unmarshal(data, &ap); err != nil {
		return models.Approval{}, fmt.Errorf("unmarshal approval: %w", err)
	}
	return ap, nil
}

func scanApprovals(rows pgx.Rows) ([]models.Approval, error) {
	var out []models.Approval
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		var ap models.Approval
		if err := json.Unmarshal(data, &ap); err != nil {
			return nil, fmt.Errorf("unmarshal approval: %w", err)
		}
		out = append(out, ap)
	}
	return out, rows.Err()
}
