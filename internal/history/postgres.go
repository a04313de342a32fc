package history

import (
	"context"
	"database/sql"
)

// NOTE: This repository assumes the following table exists:
//
// CREATE TABLE call_history (
//     id               TEXT PRIMARY KEY,
//     session_id       TEXT NOT NULL,
//     executor_id      TEXT NOT NULL,
//     executor_name    TEXT,
//     phone_number     TEXT,
//     order_id         TEXT NOT NULL,
//     result           TEXT NOT NULL,
//     turns            INT NOT NULL DEFAULT 0,
//     duration_seconds INT NOT NULL DEFAULT 0,
//     transcript       JSONB,
//     created_at       TIMESTAMPTZ NOT NULL
// );
// CREATE INDEX call_history_executor_idx ON call_history (executor_id, created_at DESC);

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO call_history
  (id, session_id, executor_id, executor_name, phone_number, order_id, result, turns, duration_seconds, transcript, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.SessionID,
		rec.ExecutorID,
		rec.ExecutorName,
		rec.PhoneNumber,
		rec.OrderID,
		rec.Result,
		rec.Turns,
		rec.DurationSeconds,
		nullIfEmpty(rec.Transcript),
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByExecutor(ctx context.Context, executorID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, session_id, executor_id, executor_name, phone_number, order_id, result, turns, duration_seconds, COALESCE(transcript::text, ''), created_at
FROM call_history
WHERE executor_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, executorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.ExecutorID,
			&rec.ExecutorName,
			&rec.PhoneNumber,
			&rec.OrderID,
			&rec.Result,
			&rec.Turns,
			&rec.DurationSeconds,
			&rec.Transcript,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
