package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS app_schedules (
	id             BIGSERIAL PRIMARY KEY,
	package_name   TEXT   NOT NULL,
	app_name       TEXT   NOT NULL,
	app_icon_path  TEXT,
	scheduled_time BIGINT NOT NULL,
	status         TEXT   NOT NULL CHECK (status IN ('PENDING', 'EXECUTED', 'CANCELLED', 'FAILED')),
	created_at     BIGINT NOT NULL,
	executed_at    BIGINT
);
CREATE INDEX IF NOT EXISTS idx_app_schedules_status_time ON app_schedules (status, scheduled_time);`

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// Migrate creates the schedule table if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
