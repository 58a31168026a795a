// Package review applies review events to schedules. It is the only code
// path that mutates a ReviewSchedule outside an explicit reset.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/ars/internal/config"
	"github.com/abhisek/ars/internal/difficulty"
	"github.com/abhisek/ars/internal/leech"
	"github.com/abhisek/ars/internal/mastery"
	"github.com/abhisek/ars/internal/spacedrep"
	"github.com/abhisek/ars/internal/store"
)

// GlobalStats is the cross-learner statistics collaborator. It is read when
// scoring and fed after every committed review. *difficulty.Aggregator
// satisfies it.
type GlobalStats interface {
	difficulty.StatsSource
	Record(obs difficulty.Observation) bool
}

// Result is the outcome of one processed review.
type Result struct {
	Schedule    *spacedrep.ReviewSchedule
	Performance spacedrep.Performance

	// Transition is set when the mastery tier changed.
	Transition *mastery.Transition

	// LeechTriggered is true when this review flagged the item as a leech.
	LeechTriggered bool

	// Replayed is true when the idempotency key had already been applied;
	// Schedule is then the current stored state and nothing was written.
	Replayed bool
}

// Processor runs the scoring, scheduling, leech and mastery steps for a
// review and writes the result with optimistic concurrency.
type Processor struct {
	cfg    config.Config
	repo   store.ScheduleRepo
	stats  GlobalStats
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor. stats may be nil, in which case global
// signals read as zero and nothing is aggregated.
func NewProcessor(cfg config.Config, repo store.ScheduleRepo, stats GlobalStats, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		cfg:    cfg,
		repo:   repo,
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process applies ev to the learner's schedule for the item, creating the
// schedule on first exposure. Invalid events fail with *InvalidInputError
// before anything is read or written; exhausting the retry budget fails
// with *ConflictError.
func (p *Processor) Process(ctx context.Context, ev Event) (*Result, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	if res, err := p.replay(ctx, ev); res != nil || err != nil {
		return res, err
	}

	global := p.globalStats(ctx, ev.ItemID)

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxSaveRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sched, err := p.loadOrDefault(ctx, ev.LearnerID, ev.ItemID)
		if err != nil {
			return nil, err
		}

		now := p.reviewTime(ev)
		res := p.apply(sched, ev, global, now)
		entry := &store.ReviewLogEntry{
			IdempotencyKey:  ev.IdempotencyKey,
			LearnerID:       ev.LearnerID,
			ItemID:          ev.ItemID,
			IsCorrect:       ev.IsCorrect,
			ResponseTimeMs:  ev.ResponseTimeMs,
			ChangedAnswer:   ev.ChangedAnswer,
			Performance:     int(res.Performance),
			DifficultyScore: sched.DifficultyScore,
			Interval:        sched.CurrentInterval,
			ReviewedAt:      now,
		}

		err = p.repo.Save(ctx, sched, entry)
		switch {
		case err == nil:
			p.committed(ev, res)
			return res, nil
		case errors.Is(err, store.ErrDuplicateKey):
			// A concurrent submission of the same key won the race.
			return p.replay(ctx, ev)
		case errors.Is(err, store.ErrVersionConflict):
			p.logger.Debug("schedule write conflict, retrying",
				"learner_id", ev.LearnerID, "item_id", ev.ItemID, "attempt", attempt)
			lastErr = err
		default:
			return nil, fmt.Errorf("save schedule %s/%s: %w", ev.LearnerID, ev.ItemID, err)
		}
	}

	return nil, &ConflictError{
		LearnerID: ev.LearnerID,
		ItemID:    ev.ItemID,
		Attempts:  p.cfg.MaxSaveRetries,
		Err:       lastErr,
	}
}

// replay returns a Replayed result when ev's key was already applied and
// (nil, nil) when it was not.
func (p *Processor) replay(ctx context.Context, ev Event) (*Result, error) {
	prior, err := p.repo.LookupReview(ctx, ev.IdempotencyKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}
	if prior.LearnerID != ev.LearnerID || prior.ItemID != ev.ItemID {
		return nil, &InvalidInputError{
			Field:  "idempotency_key",
			Reason: fmt.Sprintf("already used for %s/%s", prior.LearnerID, prior.ItemID),
		}
	}

	sched, err := p.repo.Load(ctx, ev.LearnerID, ev.ItemID)
	if err != nil {
		return nil, fmt.Errorf("load replayed schedule: %w", err)
	}
	p.logger.Debug("review replay ignored", "idempotency_key", ev.IdempotencyKey, "sequence", prior.Sequence)
	return &Result{
		Schedule:    sched,
		Performance: spacedrep.Performance(prior.Performance),
		Replayed:    true,
	}, nil
}

// apply mutates sched in place for one review.
func (p *Processor) apply(sched *spacedrep.ReviewSchedule, ev Event, global difficulty.GlobalItemStats, now time.Time) *Result {
	perf := spacedrep.PerformanceFor(ev.IsCorrect, ev.ResponseTimeMs, ev.ChangedAnswer)

	// Difficulty reads the state the learner walked in with.
	sched.DifficultyScore = difficulty.Score(difficulty.Inputs{
		ResponseTimeMs:  ev.ResponseTimeMs,
		ChangedAnswer:   ev.ChangedAnswer,
		GlobalErrorRate: global.GlobalErrorRate,
		UserErrorRate:   sched.UserErrorRate(),
		EaseFactor:      sched.EaseFactor,
	})

	step := spacedrep.Advance(p.cfg, sched.CurrentInterval, sched.EaseFactor, sched.ConsecutiveCorrect, perf)
	sched.CurrentInterval = step.Interval
	sched.EaseFactor = step.EaseFactor
	sched.ConsecutiveCorrect = step.ConsecutiveCorrect
	if perf.Passed() {
		sched.ConsecutiveFailures = 0
	} else {
		sched.ConsecutiveFailures++
	}

	sched.TotalReviews++
	if ev.IsCorrect {
		sched.TotalCorrect++
	}
	sched.TotalTimeSpentMs += ev.ResponseTimeMs
	sched.NextReviewDate = spacedrep.Date(now).AddDate(0, 0, sched.CurrentInterval)
	sched.RecentPerformance.Push(spacedrep.PerformanceRecord{
		Date:           now,
		Rating:         perf,
		ResponseTimeMs: ev.ResponseTimeMs,
	})

	res := &Result{Schedule: sched, Performance: perf}

	sched.IsLeech, sched.LeechCount, res.LeechTriggered = leech.Update(p.cfg, sched.IsLeech, sched.LeechCount, leech.Signals{
		ConsecutiveFailures:   sched.ConsecutiveFailures,
		EaseFactor:            sched.EaseFactor,
		TotalTimeSpentSeconds: float64(sched.TotalTimeSpentMs) / 1000,
		TotalAttempts:         sched.TotalReviews,
	})

	out := mastery.Classify(p.cfg, mastery.Input{
		Current:            sched.MasteryLevel,
		ConsecutiveCorrect: sched.ConsecutiveCorrect,
		EaseFactor:         sched.EaseFactor,
		CurrentInterval:    sched.CurrentInterval,
		MasteredAt:         sched.MasteredAt,
		Failed:             !perf.Passed(),
	}, now)
	sched.MasteryLevel = out.Level
	sched.MasteredAt = out.MasteredAt
	res.Transition = out.Transition

	sched.LastReviewedAt = &now
	sched.UpdatedAt = now
	return res
}

// committed runs the after-commit side effects. None of them can fail the
// review.
func (p *Processor) committed(ev Event, res *Result) {
	s := res.Schedule
	if res.Transition != nil {
		p.logger.Info("mastery transition",
			"learner_id", s.LearnerID, "item_id", s.ItemID,
			"from", res.Transition.From, "to", res.Transition.To, "trigger", res.Transition.Trigger)
	}
	if res.LeechTriggered {
		p.logger.Info("leech detected",
			"learner_id", s.LearnerID, "item_id", s.ItemID, "leech_count", s.LeechCount)
	}
	if p.stats != nil {
		p.stats.Record(difficulty.Observation{
			ItemID:         ev.ItemID,
			Correct:        ev.IsCorrect,
			EaseFactor:     s.EaseFactor,
			ResponseTimeMs: ev.ResponseTimeMs,
		})
	}
}

// reviewTime is the event's own timestamp when it carries one.
func (p *Processor) reviewTime(ev Event) time.Time {
	if ev.ReviewedAt != nil && !ev.ReviewedAt.IsZero() {
		return ev.ReviewedAt.UTC()
	}
	return p.now().UTC()
}

func (p *Processor) globalStats(ctx context.Context, itemID string) difficulty.GlobalItemStats {
	if p.stats == nil {
		return difficulty.GlobalItemStats{ItemID: itemID}
	}
	gs, err := p.stats.Lookup(ctx, itemID)
	if err != nil {
		// Global stats are a soft input; score without them.
		p.logger.Warn("global stats unavailable", "item_id", itemID, "error", err)
		return difficulty.GlobalItemStats{ItemID: itemID}
	}
	return gs
}

// loadOrDefault loads the stored schedule, clamping corrupt values, or
// returns a fresh default one for a first exposure.
func (p *Processor) loadOrDefault(ctx context.Context, learnerID, itemID string) (*spacedrep.ReviewSchedule, error) {
	sched, err := p.repo.Load(ctx, learnerID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return spacedrep.NewSchedule(p.cfg, learnerID, itemID, p.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule %s/%s: %w", learnerID, itemID, err)
	}
	for _, fix := range sched.Sanitize(p.cfg) {
		p.logger.Warn("corrupt schedule value repaired",
			"learner_id", learnerID, "item_id", itemID, "fix", fix)
	}
	return sched, nil
}

// Get returns the stored schedule, or store.ErrNotFound.
func (p *Processor) Get(ctx context.Context, learnerID, itemID string) (*spacedrep.ReviewSchedule, error) {
	sched, err := p.repo.Load(ctx, learnerID, itemID)
	if err != nil {
		return nil, err
	}
	for _, fix := range sched.Sanitize(p.cfg) {
		p.logger.Warn("corrupt schedule value repaired",
			"learner_id", learnerID, "item_id", itemID, "fix", fix)
	}
	return sched, nil
}

// Enroll creates a default schedule due today if none exists. It returns
// the stored schedule and whether this call created it.
func (p *Processor) Enroll(ctx context.Context, learnerID, itemID string) (*spacedrep.ReviewSchedule, bool, error) {
	if learnerID == "" || itemID == "" {
		return nil, false, &InvalidInputError{Reason: "learner_id and item_id are required"}
	}

	existing, err := p.repo.Load(ctx, learnerID, itemID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("load schedule: %w", err)
	}

	sched := spacedrep.NewSchedule(p.cfg, learnerID, itemID, p.now())
	err = p.repo.Save(ctx, sched, nil)
	if errors.Is(err, store.ErrVersionConflict) {
		// Created concurrently.
		existing, err := p.repo.Load(ctx, learnerID, itemID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("create schedule: %w", err)
	}
	return sched, true, nil
}

// Reset re-initializes a schedule to defaults, due today, and records the
// wiped counters in the reset audit log. It returns store.ErrNotFound for
// an unknown schedule.
func (p *Processor) Reset(ctx context.Context, learnerID, itemID, reason string) (*spacedrep.ReviewSchedule, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxSaveRetries; attempt++ {
		sched, err := p.repo.Load(ctx, learnerID, itemID)
		if err != nil {
			return nil, err
		}

		now := p.now().UTC()
		rec := store.ResetRecord{
			ID:                uuid.NewString(),
			LearnerID:         learnerID,
			ItemID:            itemID,
			Reason:            reason,
			PriorTotalReviews: sched.TotalReviews,
			PriorTotalCorrect: sched.TotalCorrect,
			PriorLeechCount:   sched.LeechCount,
			PriorMasteryLevel: string(sched.MasteryLevel),
			PriorEaseFactor:   sched.EaseFactor,
			PriorInterval:     sched.CurrentInterval,
			ResetAt:           now,
		}
		sched.ResetTo(p.cfg, now)

		err = p.repo.SaveReset(ctx, sched, rec)
		if err == nil {
			p.logger.Info("schedule reset", "learner_id", learnerID, "item_id", itemID, "reset_id", rec.ID, "reason", reason)
			return sched, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("reset schedule %s/%s: %w", learnerID, itemID, err)
		}
		lastErr = err
	}
	return nil, &ConflictError{LearnerID: learnerID, ItemID: itemID, Attempts: p.cfg.MaxSaveRetries, Err: lastErr}
}
