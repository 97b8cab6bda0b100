package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cdr-service/internal/calls"
	"cdr-service/pkg/utils"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

const (
	tableCDRs         = "cdrs"
	colID             = "id"
	colCallType       = "call_type"
	colServicedMSISDN = "serviced_msisdn"
	colOtherMSISDN    = "other_msisdn"
	colStart          = "start_date_time"
	colFinish         = "finish_date_time"
	colStatus         = "consumed_status"
)

// maxInsertRows keeps a multi-row insert well below the 65535 bind parameter limit.
const maxInsertRows = 1000

var pg = goqu.Dialect("postgres")

// PostgresRepo stores CDRs in the cdrs table (see schema.sql).
//
// Timestamps are stored as timestamptz and returned in loc, the location that defines
// calendar days for the generator.
type PostgresRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewPostgresRepo(db *sql.DB, loc *time.Location) *PostgresRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresRepo{db: db, loc: loc}
}

// Save inserts a record without ID (returning it with the assigned ID) or updates an
// existing one.
func (r *PostgresRepo) Save(ctx context.Context, rec calls.Record) (calls.Record, error) {
	if rec.ID == 0 {
		q, args, err := pg.Insert(tableCDRs).
			Rows(row(rec)).
			Returning(colID).
			Prepared(true).
			ToSQL()
		if err != nil {
			return calls.Record{}, fmt.Errorf("storage: build insert: %w", err)
		}
		if err := r.db.QueryRowContext(ctx, q, args...).Scan(&rec.ID); err != nil {
			return calls.Record{}, fmt.Errorf("storage: insert cdr: %w", err)
		}
		return rec, nil
	}

	if err := update(ctx, r.db, rec); err != nil {
		return calls.Record{}, err
	}
	return rec, nil
}

// SaveAll stores a batch in one transaction: new records in a single multi-row insert,
// known records as updates.
func (r *PostgresRepo) SaveAll(ctx context.Context, recs []calls.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var rows []interface{}
		for _, rec := range recs {
			if rec.ID != 0 {
				if err := update(ctx, tx, rec); err != nil {
					return err
				}
				continue
			}
			rows = append(rows, row(rec))
		}
		if len(rows) == 0 {
			return nil
		}
		for _, c := range utils.Chunks(len(rows), maxInsertRows) {
			q, args, err := pg.Insert(tableCDRs).Rows(rows[c[0]:c[1]]...).Prepared(true).ToSQL()
			if err != nil {
				return fmt.Errorf("storage: build batch insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("storage: batch insert %d cdrs: %w", c[1]-c[0], err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) CountByStatus(ctx context.Context, status calls.Status) (int, error) {
	q, args, err := countQuery(status)
	if err != nil {
		return 0, fmt.Errorf("storage: build count: %w", err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count cdrs: %w", err)
	}
	return n, nil
}

// FetchOldest returns up to limit records with the given status in insertion (ID) order.
func (r *PostgresRepo) FetchOldest(ctx context.Context, status calls.Status, limit int) ([]calls.Record, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	q, args, err := fetchQuery(status, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: build fetch: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch cdrs: %w", err)
	}
	defer rows.Close()

	out := make([]calls.Record, 0, limit)
	for rows.Next() {
		var (
			rec              calls.Record
			callType, status string
		)
		if err := rows.Scan(&rec.ID, &callType, &rec.ServicedMSISDN, &rec.OtherMSISDN, &rec.Start, &rec.Finish, &status); err != nil {
			return nil, fmt.Errorf("storage: scan cdr: %w", err)
		}
		rec.CallType = calls.CallType(callType)
		rec.Status = calls.Status(status)
		rec.Start = rec.Start.In(r.loc)
		rec.Finish = rec.Finish.In(r.loc)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate cdrs: %w", err)
	}
	return out, nil
}

func countQuery(status calls.Status) (string, []interface{}, error) {
	return pg.From(tableCDRs).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{colStatus: string(status)}).
		Prepared(true).
		ToSQL()
}

func fetchQuery(status calls.Status, limit int) (string, []interface{}, error) {
	return pg.From(tableCDRs).
		Select(colID, colCallType, colServicedMSISDN, colOtherMSISDN, colStart, colFinish, colStatus).
		Where(goqu.Ex{colStatus: string(status)}).
		Order(goqu.I(colID).Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func update(ctx context.Context, db execer, rec calls.Record) error {
	q, args, err := pg.Update(tableCDRs).
		Set(row(rec)).
		Where(goqu.Ex{colID: rec.ID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("storage: build update: %w", err)
	}
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("storage: update cdr %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: update cdr %d: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("storage: update cdr %d: %w", rec.ID, ErrNotFound)
	}
	return nil
}

func row(rec calls.Record) goqu.Record {
	return goqu.Record{
		colCallType:       string(rec.CallType),
		colServicedMSISDN: rec.ServicedMSISDN,
		colOtherMSISDN:    rec.OtherMSISDN,
		colStart:          rec.Start,
		colFinish:         rec.Finish,
		colStatus:         string(rec.Status),
	}
}
