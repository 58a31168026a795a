package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/ars/internal/store"
)

// KeepSnapshots is how many precomputed queues are retained per learner.
const KeepSnapshots = 5

// Precomputer builds and stores queues ahead of time so they can be served
// without scanning.
type Precomputer struct {
	builder     *Builder
	schedules   store.ScheduleRepo
	queues      store.QueueRepo
	concurrency int
	logger      *slog.Logger
}

// NewPrecomputer creates a Precomputer. concurrency bounds how many
// learners are built at once.
func NewPrecomputer(builder *Builder, schedules store.ScheduleRepo, queues store.QueueRepo, concurrency int, logger *slog.Logger) *Precomputer {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Precomputer{
		builder:     builder,
		schedules:   schedules,
		queues:      queues,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RunAll precomputes the queue for every known learner. A failure for one
// learner does not stop the others; all failures are returned joined.
func (p *Precomputer) RunAll(ctx context.Context) (int, error) {
	learners, err := p.schedules.Learners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list learners: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	errs := make([]error, len(learners))
	for i, learnerID := range learners {
		g.Go(func() error {
			if _, err := p.Run(ctx, learnerID); err != nil {
				p.logger.Warn("queue precompute failed", "learner_id", learnerID, "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	g.Wait()

	built := 0
	for _, err := range errs {
		if err == nil {
			built++
		}
	}
	return built, errors.Join(errs...)
}

// Run builds, stores and prunes one learner's queue.
func (p *Precomputer) Run(ctx context.Context, learnerID string) (*store.QueueSnapshot, error) {
	q, err := p.builder.Build(ctx, learnerID, 0)
	if err != nil {
		return nil, err
	}

	snap := ToSnapshot(q)
	if err := p.queues.SaveQueue(ctx, snap); err != nil {
		return nil, err
	}
	if err := p.queues.PruneQueues(ctx, learnerID, KeepSnapshots); err != nil {
		// Old snapshots only cost space.
		p.logger.Warn("queue snapshot prune failed", "learner_id", learnerID, "error", err)
	}
	return snap, nil
}

// ToSnapshot converts a queue into its stored form with a fresh id.
// Deferred entries are not stored.
func ToSnapshot(q *Queue) *store.QueueSnapshot {
	entries := make([]store.QueueSnapshotEntry, len(q.Entries))
	for i, e := range q.Entries {
		entries[i] = store.QueueSnapshotEntry{ItemID: e.ItemID, Reason: string(e.Reason)}
	}
	return &store.QueueSnapshot{
		ID:          uuid.NewString(),
		LearnerID:   q.LearnerID,
		GeneratedAt: q.GeneratedAt,
		Partial:     q.Partial,
		Entries:     entries,
	}
}

// FromSnapshot restores a queue from its stored form. Entries carry no
// schedule.
func FromSnapshot(snap *store.QueueSnapshot) *Queue {
	entries := make([]Entry, len(snap.Entries))
	for i, e := range snap.Entries {
		entries[i] = Entry{ItemID: e.ItemID, Reason: Reason(e.Reason)}
	}
	return &Queue{
		LearnerID:   snap.LearnerID,
		GeneratedAt: snap.GeneratedAt,
		Entries:     entries,
		Partial:     snap.Partial,
	}
}
