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

// WebhookRepo persists webhook ingress endpoints (§3.2).
type WebhookRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new webhook. Returns ErrAlreadyExists if the id
// collides (webhook ids are random tokens, so this should never happen
// in practice but the caller still needs a defined outcome).
func (r *WebhookRepo) Create(ctx context.Context, wh models.Webhook) error {
	data, err := json.Marshal(wh)
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO webhooks (webhook_id, playbook_id, status, data) VALUES ($1, $2, $3, $4)`,
		wh.WebhookID, wh.PlaybookID, wh.Status, data)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

// Get returns a webhook by id.
func (r *WebhookRepo) Get(ctx context.Context, webhookID string) (models.Webhook, error) {
	row := r.pool.QueryRow(ctx, `SELECT data FROM webhooks WHERE webhook_id = $1`, webhookID)
	return scanWebhook(row)
}

// Save persists the full webhook record (status flips, stats counters,
// secret rotation).
func (r *WebhookRepo) Save(ctx context.Context, wh models.Webhook) error {
	data, err := json.Marshal(wh)
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE webhooks SET status = $1, data = $2 WHERE webhook_id = $3`,
		wh.Status, data, wh.WebhookID)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every webhook, used by the platform-health monitor to
// compare current ingestion stats against history across all endpoints.
func (r *WebhookRepo) ListAll(ctx context.Context) ([]models.Webhook, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM webhooks ORDER BY webhook_id`)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var out []models.Webhook
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		var wh models.Webhook
		if err := json.Unmarshal(data, &wh); err != nil {
			return nil, fmt.Errorf("unmarshal webhook: %w", err)
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

// ListByPlaybook returns every webhook bound to a playbook.
func (r *WebhookRepo) ListByPlaybook(ctx context.Context, playbookID string) ([]models.Webhook, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM webhooks WHERE playbook_id = $1`, playbookID)
	if err != nil {
		return nil, fmt.Errorf("query webhooks by playbook: %w", err)
	}
	defer rows.Close()

	var out []models.Webhook
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		var wh models.Webhook
		if err := json.Unmarshal(data, &wh); err != nil {
			return nil, fmt.Errorf("unmarshal webhook: %w", err)
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

func scanWebhook(row pgx.Row) (models.Webhook, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Webhook{}, ErrNotFound
		}
		return models.Webhook{}, fmt.Errorf("scan webhook: %w", err)
	}
	var wh models.Webhook
	if err := json.Unmarshal(data, &wh); err != nil {
		return models.Webhook{}, fmt.Errorf("unmarshal webhook: %w", err)
	}
	return wh, nil
}
