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

// ExecutionRepo persists execution records and arbitrates which worker
// owns an execution at any given moment (§4.7's "entity-store conditional
// update" scheduling model), grounded on the teacher's queue.claimNextSession
// FOR UPDATE SKIP LOCKED pattern.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new execution in the EXECUTING state.
func (r *ExecutionRepo) Create(ctx context.Context, ex models.Execution) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO executions (execution_id, playbook_id, state, data) VALUES ($1, $2, $3, $4)`,
		ex.ExecutionID, ex.PlaybookID, ex.State, data)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Get returns an execution by id.
func (r *ExecutionRepo) Get(ctx context.Context, executionID string) (models.Execution, error) {
	row := r.pool.QueryRow(ctx, `SELECT data FROM executions WHERE execution_id = $1`, executionID)
	return scanExecution(row)
}

// Save persists the full execution record and refreshes updated_at,
// without touching the lock columns. Callers that hold the lock call
// this after every step transition.
func (r *ExecutionRepo) Save(ctx context.Context, ex models.Execution) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE executions SET state = $1, data = $2, updated_at = now() WHERE execution_id = $3`,
		ex.State, data, ex.ExecutionID)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimNext atomically claims the oldest unlocked EXECUTING execution for
// this owner, using SELECT ... FOR UPDATE SKIP LOCKED so concurrent
// workers never double-claim. An execution is eligible if it has no lock
// or its lock has expired (crash recovery).
func (r *ExecutionRepo) ClaimNext(ctx context.Context, owner string, leaseFor time.Duration) (models.Execution, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Execution{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT data FROM executions
		WHERE state = $1 AND (lock_expires_at IS NULL OR lock_expires_at < now())
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		models.ExecutionExecuting)

	ex, err := scanExecution(row)
	if err != nil {
		return models.Execution{}, err
	}

	expires := time.Now().Add(leaseFor)
	if _, err := tx.Exec(ctx,
		`UPDATE executions SET lock_owner = $1, lock_expires_at = $2 WHERE execution_id = $3`,
		owner, expires, ex.ExecutionID); err != nil {
		return models.Execution{}, fmt.Errorf("claim execution: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Execution{}, fmt.Errorf("commit claim: %w", err)
	}
	return ex, nil
}

// Renew extends an already-held lock. Returns ErrNotClaimed if owner no
// longer matches (e.g. the lease expired and another worker claimed it).
func (r *ExecutionRepo) Renew(ctx context.Context, executionID, owner string, leaseFor time.Duration) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE executions SET lock_expires_at = $1 WHERE execution_id = $2 AND lock_owner = $3`,
		time.Now().Add(leaseFor), executionID, owner)
	if err != nil {
		return fmt.Errorf("renew lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimed
	}
	return nil
}

// Release clears the lock, making the execution claimable again
// immediately (used after a step completes and the worker moves on, or
// when an execution reaches WAITING_APPROVAL/a terminal state).
func (r *ExecutionRepo) Release(ctx context.Context, executionID, owner string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE executions SET lock_owner = NULL, lock_expires_at = NULL WHERE execution_id = $1 AND lock_owner = $2`,
		executionID, owner)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimed
	}
	return nil
}

// Cancel transitions an execution to CANCELLED if it is currently
// EXECUTING or WAITING_APPROVAL, clearing any held lock so a worker
// mid-poll never resumes it. Returns ErrNotCancellable if the execution
// has already reached a terminal state.
func (r *ExecutionRepo) Cancel(ctx context.Context, executionID string) (models.Execution, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Execution{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT data FROM executions WHERE execution_id = $1 FOR UPDATE`, executionID)
	ex, err := scanExecution(row)
	if err != nil {
		return models.Execution{}, err
	}
	if ex.State != models.ExecutionExecuting && ex.State != models.ExecutionWaitingApproval {
		return models.Execution{}, ErrNotCancellable
	}

	now := time.Now()
	ex.State = models.ExecutionCancelled
	ex.CompletedAt = &now
	if ex.StartedAt != nil {
		ex.DurationMS = now.Sub(*ex.StartedAt).Milliseconds()
	}

	data, err := json.Marshal(ex)
	if err != nil {
		return models.Execution{}, fmt.Errorf("marshal execution: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE executions SET state = $1, data = $2, lock_owner = NULL, lock_expires_at = NULL, updated_at = now() WHERE execution_id = $3`,
		ex.State, data, executionID); err != nil {
		return models.Execution{}, fmt.Errorf("cancel execution: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Execution{}, fmt.Errorf("commit cancel: %w", err)
	}
	return ex, nil
}

// ListByState returns executions in a given state, oldest first.
func (r *ExecutionRepo) ListByState(ctx context.Context, state models.ExecutionState) ([]models.Execution, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM executions WHERE state = $1 ORDER BY created_at ASC`, state)
	if err != nil {
		return nil, fmt.Errorf("query executions by state: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListStale returns EXECUTING executions with no progress (no Save call
// updating updated_at) for longer than olderThan — the orphan-detection
// signal the SLA & Health Monitor surfaces as a stale_execution alert
// rather than auto-failing (§4.6's state machine has no "engine crash"
// transition).
func (r *ExecutionRepo) ListStale(ctx context.Context, olderThan time.Duration) ([]models.Execution, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM executions WHERE state = $1 AND updated_at < $2 ORDER BY updated_at ASC`,
		models.ExecutionExecuting, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("query stale executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListCompletedSince returns every execution that reached a terminal
// state at or after since, used by the SLA health monitor's rolling-hour
// breach rate.
func (r *ExecutionRepo) ListCompletedSince(ctx context.Context, since time.Time) ([]models.Execution, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM executions WHERE state IN ($1, $2) AND updated_at >= $3 ORDER BY updated_at ASC`,
		models.ExecutionCompleted, models.ExecutionFailed, since)
	if err != nil {
		return nil, fmt.Errorf("query executions completed since: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListByPlaybook returns every execution of a playbook, newest first.
func (r *ExecutionRepo) ListByPlaybook(ctx context.Context, playbookID string) ([]models.Execution, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM executions WHERE playbook_id = $1 ORDER BY created_at DESC`, playbookID)
	if err != nil {
		return nil, fmt.Errorf("query executions by playbook: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListParams filters and paginates the execution list endpoint (§6).
// Severity and rule_id are not indexed columns — they live inside the
// JSON trigger_data blob — so callers apply those two filters themselves
// over the page this returns (pkg/api does so via pkg/jsonpath).
type ListParams struct {
	State      models.ExecutionState // zero value = no filter
	PlaybookID string                // "" = no filter
	Since      *time.Time            // created_at >= Since
	Until      *time.Time            // created_at <= Until
	SortBy     string                // "created_at" or "updated_at"
	SortDesc   bool
	Page       int // 1-based
	PageSize   int
}

// ListResult is one page of List, plus the total matching row count for
// client-side pagination controls.
type ListResult struct {
	Executions []models.Execution
	Total      int
}

// List returns a filtered, sorted, paginated page of executions.
func (r *ExecutionRepo) List(ctx context.Context, p ListParams) (ListResult, error) {
	sortCol := "created_at"
	if p.SortBy == "updated_at" {
		sortCol = "updated_at"
	}
	order := "ASC"
	if p.SortDesc {
		order = "DESC"
	}
	page, pageSize := p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 25
	}

	where := "WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if p.State != "" {
		where += " AND state = " + arg(p.State)
	}
	if p.PlaybookID != "" {
		where += " AND playbook_id = " + arg(p.PlaybookID)
	}
	if p.Since != nil {
		where += " AND created_at >= " + arg(*p.Since)
	}
	if p.Until != nil {
		where += " AND created_at <= " + arg(*p.Until)
	}

	var total int
	countQuery := "SELECT count(*) FROM executions " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count executions: %w", err)
	}

	limitArg := arg(pageSize)
	offsetArg := arg((page - 1) * pageSize)
	query := fmt.Sprintf("SELECT data FROM executions %s ORDER BY %s %s LIMIT %s OFFSET %s",
		where, sortCol, order, limitArg, offsetArg)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	executions, err := scanExecutions(rows)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Executions: executions, Total: total}, nil
}

func scanExecution(row pgx.Row) (models.Execution, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Execution{}, ErrNotFound
		}
		return models.Execution{}, fmt.Errorf("scan execution: %w", err)
	}
	var ex models.Execution
	if err := json.Unmarshal(data, &ex); err != nil {
		return models.Execution{}, fmt.Errorf("unmarshal execution: %w", err)
	}
	return ex, nil
}

func scanExecutions(rows pgx.Rows) ([]models.Execution, error) {
	var out []models.Execution
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		var ex models.Execution
		if err := json.Unmarshal(data, &ex); err != nil {
			return nil, fmt.Errorf("unmarshal execution: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
