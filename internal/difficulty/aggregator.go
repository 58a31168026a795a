package difficulty

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/ars/internal/config"
)

// StatsRepo persists GlobalItemStats.
type StatsRepo interface {
	// ItemStats returns the stored stats for an item, or a zero record
	// carrying only ItemID when none exist.
	ItemStats(ctx context.Context, itemID string) (GlobalItemStats, error)

	// SaveItemStats upserts the stats for stats.ItemID.
	SaveItemStats(ctx context.Context, stats GlobalItemStats) error
}

// StatsSource supplies the global signals used when scoring a review.
// Implementations may use all-time or windowed statistics.
type StatsSource interface {
	Lookup(ctx context.Context, itemID string) (GlobalItemStats, error)
}

const writeTimeout = 5 * time.Second

// Aggregator maintains GlobalItemStats off the review critical path.
// Record never blocks: observations are queued on a bounded channel and
// applied by a single worker, so per-item read-modify-write is serialized
// within the process. Overflow and write failures are logged and dropped.
type Aggregator struct {
	repo    StatsRepo
	logger  *slog.Logger
	now     func() time.Time
	pending chan Observation
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAggregator starts the background worker. Call Close to drain it.
func NewAggregator(cfg config.Config, repo StatsRepo, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		pending: make(chan Observation, cfg.AggregatorBuffer),
		done:    make(chan struct{}),
	}
	go a.processLoop()
	return a
}

// Lookup implements StatsSource by reading the latest persisted stats.
func (a *Aggregator) Lookup(ctx context.Context, itemID string) (GlobalItemStats, error) {
	return a.repo.ItemStats(ctx, itemID)
}

// Record queues an observation. It returns false when the observation was
// dropped because the queue is full or the aggregator is closed.
func (a *Aggregator) Record(obs Observation) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.logger.Warn("global stats update dropped: aggregator closed", "item_id", obs.ItemID)
		return false
	}

	select {
	case a.pending <- obs:
		return true
	default:
		a.logger.Warn("global stats update dropped: queue full", "item_id", obs.ItemID)
		return false
	}
}

// Close stops accepting observations and waits for queued ones to be applied.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.pending)
	a.mu.Unlock()

	<-a.done
}

func (a *Aggregator) processLoop() {
	defer close(a.done)
	for obs := range a.pending {
		a.apply(obs)
	}
}

func (a *Aggregator) apply(obs Observation) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	stats, err := a.repo.ItemStats(ctx, obs.ItemID)
	if err != nil {
		a.logger.Warn("global stats read failed", "item_id", obs.ItemID, "error", err)
		return
	}
	stats.ItemID = obs.ItemID
	stats.Apply(obs, a.now().UTC())

	if err := a.repo.SaveItemStats(ctx, stats); err != nil {
		a.logger.Warn("global stats write failed", "item_id", obs.ItemID, "error", err)
	}
}
