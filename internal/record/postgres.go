// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// rowsPerInsert keeps each statement well below PostgreSQL's 65535
// parameter limit.
const rowsPerInsert = 500

const columnsPerRow = 9

// PostgresSink writes recordings as one database row per sample.
type PostgresSink struct {
	db    *sql.DB
	table string
}

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresSink(db, table), nil
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, table: table}
}

func (p *PostgresSink) Name() string { return "postgres" }

// EnsureTable creates the sample table when missing.
func (p *PostgresSink) EnsureTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+pq.QuoteIdentifier(p.table)+` (
	session_id UUID NOT NULL,
	gesture TEXT NOT NULL,
	ts_ms BIGINT NOT NULL,
	ax DOUBLE PRECISION, ay DOUBLE PRECISION, az DOUBLE PRECISION,
	gx DOUBLE PRECISION, gy DOUBLE PRECISION, gz DOUBLE PRECISION,
	PRIMARY KEY (session_id, gesture, ts_ms)
)`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	return nil
}

// WriteRows inserts rows in a single transaction. Rows already stored for
// the same session, gesture and time are skipped.
func (p *PostgresSink) WriteRows(ctx context.Context, session, gesture string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	for start := 0; start < len(rows); start += rowsPerInsert {
		end := min(start+rowsPerInsert, len(rows))
		query, args := p.insert(session, gesture, rows[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *PostgresSink) insert(session, gesture string, rows []Row) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(p.table))
	b.WriteString(" (session_id, gesture, ts_ms, ax, ay, az, gx, gy, gz) VALUES ")

	args := make([]any, 0, len(rows)*columnsPerRow)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 1; c <= columnsPerRow; c++ {
			if c > 1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c)
		}
		b.WriteString(")")
		args = append(args, session, gesture, r.Time,
			r.Acc.X, r.Acc.Y, r.Acc.Z, r.Gyro.X, r.Gyro.Y, r.Gyro.Z)
	}
	b.WriteString(" ON CONFLICT (session_id, gesture, ts_ms) DO NOTHING")
	return b.String(), args
}

func (p *PostgresSink) Close() error { return p.db.Close() }
