package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
)

// sequenceCounter assigns the global monotonic sequence stamped on every
// review log row. Together with the unique idempotency key it gives the
// log a total order that survives process restarts.
//
// Uses raw SQL outside the builder because the counter needs an atomic
// UPDATE ... RETURNING. It always runs inside the caller's transaction so
// the sequence and the row it orders commit or roll back together.
type sequenceCounter struct{}

// newSequenceCounter ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// appendReviewLog stamps entry with a sequence and inserts it. A repeated
// idempotency key yields ErrDuplicateKey.
func (sc *sequenceCounter) appendReviewLog(ctx context.Context, tx *sql.Tx, entry *ReviewLogEntry) error {
	seq, err := sc.Next(ctx, tx)
	if err != nil {
		return err
	}

	q, args := entsql.Dialect(dialect.SQLite).
		Insert(tableReviewLog).
		Columns("idempotency_key", "sequence", "learner_id", "item_id", "is_correct",
			"response_time_ms", "changed_answer", "performance", "difficulty_score",
			"interval", "reviewed_at").
		Values(entry.IdempotencyKey, seq, entry.LearnerID, entry.ItemID, entry.IsCorrect,
			entry.ResponseTimeMs, entry.ChangedAnswer, entry.Performance, entry.DifficultyScore,
			entry.Interval, formatTime(entry.ReviewedAt)).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("append review log: %w", err)
	}
	entry.Sequence = seq
	return nil
}

func lookupReviewLog(ctx context.Context, db *sql.DB, key string) (*ReviewLogEntry, error) {
	b := entsql.Dialect(dialect.SQLite)
	q, args := b.Select("idempotency_key", "sequence", "learner_id", "item_id", "is_correct",
		"response_time_ms", "changed_answer", "performance", "difficulty_score",
		"interval", "reviewed_at").
		From(b.Table(tableReviewLog)).
		Where(entsql.EQ("idempotency_key", key)).
		Query()

	var (
		e          ReviewLogEntry
		reviewedAt string
	)
	err := db.QueryRowContext(ctx, q, args...).Scan(
		&e.IdempotencyKey, &e.Sequence, &e.LearnerID, &e.ItemID, &e.IsCorrect,
		&e.ResponseTimeMs, &e.ChangedAnswer, &e.Performance, &e.DifficultyScore,
		&e.Interval, &reviewedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query review log: %w", err)
	}
	if e.ReviewedAt, err = parseTime(reviewedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Times are stored as RFC 3339 UTC text so they compare and round-trip
// exactly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
