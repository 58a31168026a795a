package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// queueRepo implements QueueRepo on SQLite.
type queueRepo struct {
	db *sql.DB
}

func (r *queueRepo) SaveQueue(ctx context.Context, snap *QueueSnapshot) error {
	entries, err := json.Marshal(snap.Entries)
	if err != nil {
		return fmt.Errorf("marshal queue entries: %w", err)
	}

	q, args := entsql.Dialect(dialect.SQLite).
		Insert(tableQueues).
		Columns("snapshot_id", "learner_id", "generated_at", "partial", "entries").
		Values(snap.ID, snap.LearnerID, formatTime(snap.GeneratedAt), snap.Partial, string(entries)).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save queue snapshot: %w", err)
	}
	return nil
}

func (r *queueRepo) LatestQueue(ctx context.Context, learnerID string) (*QueueSnapshot, error) {
	b := entsql.Dialect(dialect.SQLite)
	q, args := b.Select("snapshot_id", "learner_id", "generated_at", "partial", "entries").
		From(b.Table(tableQueues)).
		Where(entsql.EQ("learner_id", learnerID)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Query()

	var (
		snap                 QueueSnapshot
		generatedAt, entries string
	)
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&snap.ID, &snap.LearnerID, &generatedAt, &snap.Partial, &entries,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest queue: %w", err)
	}
	if snap.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entries), &snap.Entries); err != nil {
		return nil, fmt.Errorf("unmarshal queue entries: %w", err)
	}
	return &snap, nil
}

func (r *queueRepo) PruneQueues(ctx context.Context, learnerID string, keep int) error {
	// Find the threshold: the newest snapshot that falls outside keep.
	b := entsql.Dialect(dialect.SQLite)
	q, args := b.Select("id").
		From(b.Table(tableQueues)).
		Where(entsql.EQ("learner_id", learnerID)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Offset(keep).
		Query()

	var threshold int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // fewer than keep snapshots exist
	}
	if err != nil {
		return fmt.Errorf("query queues for prune: %w", err)
	}

	q, args = b.Delete(tableQueues).
		Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.LTE("id", threshold),
		)).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("prune queues: %w", err)
	}
	return nil
}
