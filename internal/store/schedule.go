package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/abhisek/ars/internal/mastery"
	"github.com/abhisek/ars/internal/spacedrep"
)

// scheduleColumns lists review_schedules columns in scan order.
var scheduleColumns = []string{
	"learner_id", "item_id", "next_review_date", "current_interval", "ease_factor",
	"consecutive_correct", "consecutive_failures", "total_reviews", "total_correct",
	"total_time_spent_ms", "difficulty_score", "is_leech", "leech_count",
	"mastery_level", "mastered_at", "recent_performance", "last_reviewed_at",
	"version", "created_at", "updated_at",
}

// scheduleRepo implements ScheduleRepo on SQLite.
type scheduleRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *scheduleRepo) Load(ctx context.Context, learnerID, itemID string) (*spacedrep.ReviewSchedule, error) {
	b := entsql.Dialect(dialect.SQLite)
	q, args := b.Select(scheduleColumns...).
		From(b.Table(tableSchedules)).
		Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.EQ("item_id", itemID),
		)).
		Query()

	sched, err := scanSchedule(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule %s/%s: %w", learnerID, itemID, err)
	}
	return sched, nil
}

func (r *scheduleRepo) Save(ctx context.Context, sched *spacedrep.ReviewSchedule, entry *ReviewLogEntry) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if entry != nil {
			if err := r.seq.appendReviewLog(ctx, tx, entry); err != nil {
				return err
			}
		}
		return writeSchedule(ctx, tx, sched)
	}, sched)
}

func (r *scheduleRepo) SaveReset(ctx context.Context, sched *spacedrep.ReviewSchedule, rec ResetRecord) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := writeSchedule(ctx, tx, sched); err != nil {
			return err
		}
		q, args := entsql.Dialect(dialect.SQLite).
			Insert(tableResets).
			Columns("reset_id", "learner_id", "item_id", "reason",
				"prior_total_reviews", "prior_total_correct", "prior_leech_count",
				"prior_mastery_level", "prior_ease_factor", "prior_interval", "reset_at").
			Values(rec.ID, rec.LearnerID, rec.ItemID, rec.Reason,
				rec.PriorTotalReviews, rec.PriorTotalCorrect, rec.PriorLeechCount,
				rec.PriorMasteryLevel, rec.PriorEaseFactor, rec.PriorInterval, formatTime(rec.ResetAt)).
			Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("record reset: %w", err)
		}
		return nil
	}, sched)
}

func (r *scheduleRepo) LookupReview(ctx context.Context, key string) (*ReviewLogEntry, error) {
	return lookupReviewLog(ctx, r.db, key)
}

func (r *scheduleRepo) Scan(ctx context.Context, f ScanFilter, visit func(*spacedrep.ReviewSchedule) bool) error {
	b := entsql.Dialect(dialect.SQLite)
	preds := []*entsql.Predicate{entsql.EQ("learner_id", f.LearnerID)}
	if !f.DueThrough.IsZero() {
		preds = append(preds, entsql.LTE("next_review_date", spacedrep.DateString(f.DueThrough)))
	}
	q, args := b.Select(scheduleColumns...).
		From(b.Table(tableSchedules)).
		Where(entsql.And(preds...)).
		OrderBy("next_review_date", "item_id").
		Query()

	// A single SELECT reads from one SQLite snapshot, so concurrent review
	// writes never show up half-applied in a scan.
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("scan schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return fmt.Errorf("scan schedule row: %w", err)
		}
		if !visit(sched) {
			return nil
		}
	}
	return rows.Err()
}

func (r *scheduleRepo) Learners(ctx context.Context) ([]string, error) {
	b := entsql.Dialect(dialect.SQLite)
	q, args := b.Select("learner_id").
		Distinct().
		From(b.Table(tableSchedules)).
		OrderBy("learner_id").
		Query()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query learners: %w", err)
	}
	defer rows.Close()

	var learners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan learner: %w", err)
		}
		learners = append(learners, id)
	}
	return learners, rows.Err()
}

// inTx runs fn in a transaction and bumps sched.Version once it commits.
func (r *scheduleRepo) inTx(ctx context.Context, fn func(*sql.Tx) error, sched *spacedrep.ReviewSchedule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	sched.Version++
	return nil
}

// writeSchedule inserts a new record (Version 0) or updates the stored one
// if its version still matches. The caller bumps sched.Version on commit.
func writeSchedule(ctx context.Context, tx *sql.Tx, sched *spacedrep.ReviewSchedule) error {
	perf, err := json.Marshal(sched.RecentPerformance)
	if err != nil {
		return fmt.Errorf("marshal recent performance: %w", err)
	}
	values := []any{
		sched.LearnerID, sched.ItemID, spacedrep.DateString(sched.NextReviewDate),
		sched.CurrentInterval, sched.EaseFactor,
		sched.ConsecutiveCorrect, sched.ConsecutiveFailures, sched.TotalReviews, sched.TotalCorrect,
		sched.TotalTimeSpentMs, sched.DifficultyScore, sched.IsLeech, sched.LeechCount,
		string(sched.MasteryLevel), formatNullTime(sched.MasteredAt), string(perf),
		formatNullTime(sched.LastReviewedAt),
		sched.Version + 1, formatTime(sched.CreatedAt), formatTime(sched.UpdatedAt),
	}

	b := entsql.Dialect(dialect.SQLite)
	if sched.Version == 0 {
		q, args := b.Insert(tableSchedules).Columns(scheduleColumns...).Values(values...).Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			if sqlgraph.IsUniqueConstraintError(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert schedule: %w", err)
		}
		return nil
	}

	upd := b.Update(tableSchedules)
	// learner_id and item_id are the identity and never change.
	for i, col := range scheduleColumns[2:] {
		upd.Set(col, values[i+2])
	}
	q, args := upd.Where(entsql.And(
		entsql.EQ("learner_id", sched.LearnerID),
		entsql.EQ("item_id", sched.ItemID),
		entsql.EQ("version", sched.Version),
	)).Query()

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*spacedrep.ReviewSchedule, error) {
	var (
		s                        spacedrep.ReviewSchedule
		nextReview, level, perf  string
		masteredAt, lastReviewed sql.NullString
		createdAt, updatedAt     string
	)
	err := row.Scan(
		&s.LearnerID, &s.ItemID, &nextReview, &s.CurrentInterval, &s.EaseFactor,
		&s.ConsecutiveCorrect, &s.ConsecutiveFailures, &s.TotalReviews, &s.TotalCorrect,
		&s.TotalTimeSpentMs, &s.DifficultyScore, &s.IsLeech, &s.LeechCount,
		&level, &masteredAt, &perf, &lastReviewed,
		&s.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d, err := time.Parse(time.DateOnly, nextReview)
	if err != nil {
		return nil, fmt.Errorf("parse next_review_date %q: %w", nextReview, err)
	}
	s.NextReviewDate = d.UTC()
	s.MasteryLevel = mastery.Level(level)

	if err := json.Unmarshal([]byte(perf), &s.RecentPerformance); err != nil {
		return nil, fmt.Errorf("unmarshal recent performance: %w", err)
	}
	if s.MasteredAt, err = parseNullTime(masteredAt); err != nil {
		return nil, err
	}
	if s.LastReviewedAt, err = parseNullTime(lastReviewed); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
