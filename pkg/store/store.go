// Package store is the Postgres-backed entity store (§3/§6): playbooks,
// executions, approvals, webhooks, triggers, connectors and audit events,
// persisted directly through pgx/v5 (no ORM — see DESIGN.md for why).
package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a pgx connection pool and exposes one repository per
// entity kind. A parallel database/sql handle over the same DSN is kept
// only long enough to drive golang-migrate at startup.
type Store struct {
	pool *pgxpool.Pool

	Playbooks  *PlaybookRepo
	Executions *ExecutionRepo
	Approvals  *ApprovalRepo
	Webhooks   *WebhookRepo
	Triggers   *TriggerRepo
	Connectors *ConnectorRepo
	Audit      *AuditRepo
	SLAPolicies *SLAPolicyRepo
}

// Open connects to Postgres, optionally runs pending migrations, and
// returns a ready Store.
func Open(ctx context.Context, dsn string, maxConns int32, migrateOnBoot bool) (*Store, error) {
	if migrateOnBoot {
		if err := runMigrations(dsn); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		pool:       pool,
		Playbooks:  &PlaybookRepo{pool: pool},
		Executions: &ExecutionRepo{pool: pool},
		Approvals:  &ApprovalRepo{pool: pool},
		Webhooks:   &WebhookRepo{pool: pool},
		Triggers:   &TriggerRepo{pool: pool},
		Connectors: &ConnectorRepo{pool: pool},
		Audit:      &AuditRepo{pool: pool},
		SLAPolicies: &SLAPolicyRepo{pool: pool},
	}, nil
}

// runMigrations applies every pending embedded migration using
// golang-migrate, grounded on the teacher's client.go runMigrations (the
// teacher drives it off an ent-owned *sql.DB; this store opens its own
// short-lived *sql.DB for the same purpose since there is no ent client
// to share one with).
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "soarcore", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// HealthStatus reports pool connectivity and statistics.
type HealthStatus struct {
	Status        string        `json:"status"`
	ResponseTime  time.Duration `json:"response_time_ms"`
	AcquiredConns int32         `json:"acquired_conns"`
	IdleConns     int32         `json:"idle_conns"`
	MaxConns      int32         `json:"max_conns"`
}

// Health pings the pool and reports its current statistics.
func (s *Store) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start)}, err
	}
	stats := s.pool.Stat()
	return &HealthStatus{
		Status:        "healthy",
		ResponseTime:  time.Since(start),
		AcquiredConns: stats.AcquiredConns(),
		IdleConns:     stats.IdleConns(),
		MaxConns:      stats.MaxConns(),
	}, nil
}
