package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NOTE: This repository assumes the audit_events table from the storage schema.
// It only ever INSERTs; grant the service role INSERT and SELECT, nothing else.

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sql.DB, driverName string) *PostgresRepo {
	return &PostgresRepo{db: sqlx.NewDb(db, driverName)}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, subject, role, ip_address, task, message, metadata, created_at)
VALUES (:id, :type, :subject, :role, :ip_address, :task, :message, :metadata, :created_at)
`
	if _, err := r.db.NamedExecContext(ctx, q, e); err != nil {
		return fmt.Errorf("audit: append %s: %w", e.Type, err)
	}
	return nil
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	const q = `
SELECT id, type, subject, role, ip_address, task, message, metadata, created_at
FROM audit_events
ORDER BY created_at DESC, id DESC
LIMIT $1
`
	var out []Event
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	return out, nil
}
