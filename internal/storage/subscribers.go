package storage

import (
	"context"
	"database/sql"
	"fmt"

	"cdr-service/internal/calls"

	"github.com/jmoiron/sqlx"
)

// SubscriberDirectory reads the subscribers table.
type SubscriberDirectory struct {
	db *sqlx.DB
}

// NewSubscriberDirectory wraps an open *sql.DB; driverName selects the sqlx bind style.
func NewSubscriberDirectory(db *sql.DB, driverName string) *SubscriberDirectory {
	return &SubscriberDirectory{db: sqlx.NewDb(db, driverName)}
}

const seedQuery = `INSERT INTO subscribers (msisdn) VALUES (:msisdn) ON CONFLICT (msisdn) DO NOTHING`

// Seed inserts the msisdns that are not present yet and returns how many were added.
func (d *SubscriberDirectory) Seed(ctx context.Context, msisdns []string) (int64, error) {
	if len(msisdns) == 0 {
		return 0, nil
	}
	rows := make([]calls.Subscriber, len(msisdns))
	for i, m := range msisdns {
		rows[i] = calls.Subscriber{MSISDN: m}
	}
	res, err := d.db.NamedExecContext(ctx, seedQuery, rows)
	if err != nil {
		return 0, fmt.Errorf("storage: seed subscribers: %w", err)
	}
	return res.RowsAffected()
}

func (d *SubscriberDirectory) ListAll(ctx context.Context) ([]calls.Subscriber, error) {
	const q = `SELECT id, msisdn FROM subscribers ORDER BY id`
	var out []calls.Subscriber
	if err := d.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("storage: list subscribers: %w", err)
	}
	return out, nil
}
