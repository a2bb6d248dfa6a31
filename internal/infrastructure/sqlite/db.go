package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS app_schedules (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	package_name   TEXT    NOT NULL,
	app_name       TEXT    NOT NULL,
	app_icon_path  TEXT,
	scheduled_time INTEGER NOT NULL,
	status         TEXT    NOT NULL CHECK (status IN ('PENDING', 'EXECUTED', 'CANCELLED', 'FAILED')),
	created_at     INTEGER NOT NULL,
	executed_at    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_app_schedules_status_time ON app_schedules (status, scheduled_time);`

// Open opens (creating if needed) the schedule database at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// single writer; sqlite serializes writes anyway and this keeps SQLITE_BUSY out of the picture
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}

// Pinger adapts *sql.DB to the health checker.
type Pinger struct {
	DB *sql.DB
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
