package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/ars/internal/difficulty"
)

// StatsRepo persists per-item aggregates. It implements difficulty.StatsRepo.
type StatsRepo struct {
	db *sql.DB
}

var _ difficulty.StatsRepo = (*StatsRepo)(nil)

func (r *StatsRepo) ItemStats(ctx context.Context, itemID string) (difficulty.GlobalItemStats, error) {
	b := entsql.Dialect(dialect.SQLite)
	q, args := b.Select("total_reviews", "total_correct", "global_error_rate",
		"average_ease_factor", "average_response_time_ms", "updated_at").
		From(b.Table(tableItemStats)).
		Where(entsql.EQ("item_id", itemID)).
		Query()

	stats := difficulty.GlobalItemStats{ItemID: itemID}
	var updatedAt string
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&stats.TotalReviews, &stats.TotalCorrect, &stats.GlobalErrorRate,
		&stats.AverageEaseFactor, &stats.AverageResponseTimeMs, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return difficulty.GlobalItemStats{}, fmt.Errorf("query item stats %s: %w", itemID, err)
	}
	if stats.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return difficulty.GlobalItemStats{}, err
	}
	return stats, nil
}

func (r *StatsRepo) SaveItemStats(ctx context.Context, stats difficulty.GlobalItemStats) error {
	q, args := entsql.Dialect(dialect.SQLite).
		Insert(tableItemStats).
		Columns("item_id", "total_reviews", "total_correct", "global_error_rate",
			"average_ease_factor", "average_response_time_ms", "updated_at").
		Values(stats.ItemID, stats.TotalReviews, stats.TotalCorrect, stats.GlobalErrorRate,
			stats.AverageEaseFactor, stats.AverageResponseTimeMs, formatTime(stats.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("item_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save item stats %s: %w", stats.ItemID, err)
	}
	return nil
}
