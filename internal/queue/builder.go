package queue

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/abhisek/ars/internal/config"
	"github.com/abhisek/ars/internal/mastery"
	"github.com/abhisek/ars/internal/spacedrep"
	"github.com/abhisek/ars/internal/store"
)

// budgetCheckEvery is how many records are read between time budget checks.
const budgetCheckEvery = 64

// Builder produces review queues. It only reads schedules.
type Builder struct {
	cfg    config.Config
	repo   store.ScheduleRepo
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the time source used to decide what "today" is.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder over repo.
func NewBuilder(cfg config.Config, repo store.ScheduleRepo, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{cfg: cfg, repo: repo, logger: logger, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build returns at most maxReviews entries for learnerID, or
// cfg.MaxDailyReviews when maxReviews is not positive.
//
// Buckets are filled strictly in order, each capped by what is left:
//  1. overdue leeches by due date, up to maxReviews/4
//  2. other overdue items, Permanent included, by due date, up to maxReviews/2
//  3. items due today, not Permanent, hardest first
//
// Equal keys fall back to item id. The result is then interleaved so
// leeches are spread out.
func (b *Builder) Build(ctx context.Context, learnerID string, maxReviews int) (*Queue, error) {
	if maxReviews <= 0 {
		maxReviews = b.cfg.MaxDailyReviews
	}
	now := b.now().UTC()
	today := spacedrep.Date(now)

	due, partial, err := b.snapshot(ctx, learnerID, today)
	if err != nil {
		return nil, err
	}

	var overdueLeeches, overdue, dueToday []*spacedrep.ReviewSchedule
	for _, s := range due {
		switch {
		case s.IsOverdue(today) && s.IsLeech:
			overdueLeeches = append(overdueLeeches, s)
		case s.IsOverdue(today):
			overdue = append(overdue, s)
		case s.Status(today) == spacedrep.StatusDueToday && s.MasteryLevel != mastery.LevelPermanent:
			dueToday = append(dueToday, s)
		}
	}

	// The snapshot is already ordered by due date then item id.
	slices.SortStableFunc(dueToday, func(x, y *spacedrep.ReviewSchedule) int {
		if c := cmp.Compare(y.DifficultyScore, x.DifficultyScore); c != 0 {
			return c
		}
		return cmp.Compare(x.ItemID, y.ItemID)
	})

	remaining := maxReviews
	var selected []Entry
	take := func(bucket []*spacedrep.ReviewSchedule, limit int, reason Reason) {
		n := min(len(bucket), limit, remaining)
		for _, s := range bucket[:n] {
			selected = append(selected, Entry{ItemID: s.ItemID, Reason: reason, Schedule: s})
		}
		remaining -= n
	}
	take(overdueLeeches, maxReviews/4, ReasonLeech)
	take(overdue, maxReviews/2, ReasonOverdue)
	take(dueToday, remaining, ReasonDueToday)

	entries, deferred := interleave(selected, b.cfg.LeechInterleaveGap)
	q := &Queue{
		LearnerID:   learnerID,
		GeneratedAt: now,
		Entries:     entries,
		Deferred:    deferred,
		Partial:     partial,
	}

	b.logger.Debug("queue built",
		"learner_id", learnerID, "due", len(due), "queued", len(entries),
		"deferred", len(deferred), "partial", partial)
	return q, nil
}

// snapshot reads every record due through today in one scan. It stops
// early, reporting partial, once the time budget is spent.
func (b *Builder) snapshot(ctx context.Context, learnerID string, today time.Time) ([]*spacedrep.ReviewSchedule, bool, error) {
	start := time.Now()
	var (
		due     []*spacedrep.ReviewSchedule
		partial bool
	)
	err := b.repo.Scan(ctx, store.ScanFilter{LearnerID: learnerID, DueThrough: today}, func(s *spacedrep.ReviewSchedule) bool {
		due = append(due, s)
		if len(due)%budgetCheckEvery == 0 && time.Since(start) > b.cfg.QueueTimeBudget {
			partial = true
			return false
		}
		return true
	})
	if err != nil {
		return nil, false, fmt.Errorf("scan due schedules for %s: %w", learnerID, err)
	}
	if partial {
		b.logger.Warn("queue scan hit time budget, returning partial queue",
			"learner_id", learnerID, "scanned", len(due), "budget", b.cfg.QueueTimeBudget)
	}
	return due, partial, nil
}
