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

// ConnectorRepo persists registered connectors (§4.5). The in-memory
// pkg/connector.Registry is populated from this table at boot and
// updated whenever a connector is created, toggled, or its stats change.
type ConnectorRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new connector record.
func (r *ConnectorRepo) Create(ctx context.Context, c models.Connector) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal connector: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO connectors (connector_id, active, data) VALUES ($1, $2, $3)`,
		c.ConnectorID, c.Active, data)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert connector: %w", err)
	}
	return nil
}

// Get returns a connector by id.
func (r *ConnectorRepo) Get(ctx context.Context, connectorID string) (models.Connector, error) {
	row := r.pool.QueryRow(ctx, `SELECT data FROM connectors WHERE connector_id = $1`, connectorID)
	return scanConnector(row)
}

// Save persists the full connector record (active flag, stats).
func (r *ConnectorRepo) Save(ctx context.Context, c models.Connector) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal connector: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE connectors SET active = $1, data = $2 WHERE connector_id = $3`,
		c.Active, data, c.ConnectorID)
	if err != nil {
		return fmt.Errorf("update connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every registered connector, used to repopulate the
// in-memory registry on boot.
func (r *ConnectorRepo) List(ctx context.Context) ([]models.Connector, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM connectors ORDER BY connector_id`)
	if err != nil {
		return nil, fmt.Errorf("query connectors: %w", err)
	}
	defer rows.Close()

	var out []models.Connector
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		var c models.Connector
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal connector: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConnector(row pgx.Row) (models.Connector, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Connector{}, ErrNotFound
		}
		return models.Connector{}, fmt.Errorf("scan connector: %w", err)
	}
	var c models.Connector
	if err := json.Unmarshal(data, &c); err != nil {
		return models.Connector{}, fmt.Errorf("unmarshal connector: %w", err)
	}
	return c, nil
}
