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

// TriggerRepo persists the 1:1 condition list bound to each webhook (§3.3).
type TriggerRepo struct {
	pool *pgxpool.Pool
}

// Upsert creates or replaces a webhook's trigger.
func (r *TriggerRepo) Upsert(ctx context.Context, t models.Trigger) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO triggers (webhook_id, data) VALUES ($1, $2)
		ON CONFLICT (webhook_id) DO UPDATE SET data = EXCLUDED.data`,
		t.WebhookID, data)
	if err != nil {
		return fmt.Errorf("upsert trigger: %w", err)
	}
	return nil
}

// Get returns the trigger bound to a webhook.
func (r *TriggerRepo) Get(ctx context.Context, webhookID string) (models.Trigger, error) {
	row := r.pool.QueryRow(ctx, `SELECT data FROM triggers WHERE webhook_id = $1`, webhookID)
	return scanTrigger(row)
}

func scanTrigger(row pgx.Row) (models.Trigger, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Trigger{}, ErrNotFound
		}
		return models.Trigger{}, fmt.Errorf("scan trigger: %w", err)
	}
	var t models.Trigger
	if err := json.Unmarshal(data, &t); err != nil {
		return models.Trigger{}, fmt.Errorf("unmarshal trigger: %w", err)
	}
	return t, nil
}
