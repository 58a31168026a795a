package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/abhisek/ars/internal/difficulty"
	"github.com/abhisek/ars/internal/spacedrep"
)

type scheduleKey struct {
	learnerID string
	itemID    string
}

// Memory is an in-process store implementing ScheduleRepo, QueueRepo and
// difficulty.StatsRepo with the same semantics as the SQLite store. It is
// meant for tests and ephemeral runs.
type Memory struct {
	mu        sync.Mutex
	schedules map[scheduleKey]*spacedrep.ReviewSchedule
	reviews   map[string]ReviewLogEntry
	resets    []ResetRecord
	stats     map[string]difficulty.GlobalItemStats
	queues    map[string][]QueueSnapshot
	seq       int64
}

var (
	_ ScheduleRepo         = (*Memory)(nil)
	_ QueueRepo            = (*Memory)(nil)
	_ difficulty.StatsRepo = (*Memory)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		schedules: make(map[scheduleKey]*spacedrep.ReviewSchedule),
		reviews:   make(map[string]ReviewLogEntry),
		stats:     make(map[string]difficulty.GlobalItemStats),
		queues:    make(map[string][]QueueSnapshot),
	}
}

func (m *Memory) Load(_ context.Context, learnerID, itemID string) (*spacedrep.ReviewSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[scheduleKey{learnerID, itemID}]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Save(_ context.Context, sched *spacedrep.ReviewSchedule, entry *ReviewLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry != nil {
		if _, dup := m.reviews[entry.IdempotencyKey]; dup {
			return ErrDuplicateKey
		}
	}
	if err := m.checkVersion(sched); err != nil {
		return err
	}
	if entry != nil {
		m.seq++
		entry.Sequence = m.seq
		m.reviews[entry.IdempotencyKey] = *entry
	}
	m.put(sched)
	return nil
}

func (m *Memory) SaveReset(_ context.Context, sched *spacedrep.ReviewSchedule, rec ResetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkVersion(sched); err != nil {
		return err
	}
	m.resets = append(m.resets, rec)
	m.put(sched)
	return nil
}

func (m *Memory) checkVersion(sched *spacedrep.ReviewSchedule) error {
	stored, ok := m.schedules[scheduleKey{sched.LearnerID, sched.ItemID}]
	switch {
	case !ok && sched.Version != 0:
		return ErrVersionConflict
	case ok && stored.Version != sched.Version:
		return ErrVersionConflict
	}
	return nil
}

func (m *Memory) put(sched *spacedrep.ReviewSchedule) {
	sched.Version++
	m.schedules[scheduleKey{sched.LearnerID, sched.ItemID}] = sched.Clone()
}

func (m *Memory) LookupReview(_ context.Context, key string) (*ReviewLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.reviews[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Resets returns the recorded reset audit rows, oldest first.
func (m *Memory) Resets() []ResetRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.resets)
}

func (m *Memory) Scan(ctx context.Context, f ScanFilter, visit func(*spacedrep.ReviewSchedule) bool) error {
	// Copy under the lock so the visit sees one consistent snapshot.
	m.mu.Lock()
	var matched []*spacedrep.ReviewSchedule
	for k, s := range m.schedules {
		if k.learnerID != f.LearnerID {
			continue
		}
		if !f.DueThrough.IsZero() && !s.IsDue(f.DueThrough) {
			continue
		}
		matched = append(matched, s.Clone())
	}
	m.mu.Unlock()

	slices.SortFunc(matched, func(a, b *spacedrep.ReviewSchedule) int {
		if c := a.NextReviewDate.Compare(b.NextReviewDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ItemID, b.ItemID)
	})

	for _, s := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !visit(s) {
			return nil
		}
	}
	return nil
}

func (m *Memory) Learners(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	var learners []string
	for k := range m.schedules {
		if _, ok := seen[k.learnerID]; ok {
			continue
		}
		seen[k.learnerID] = struct{}{}
		learners = append(learners, k.learnerID)
	}
	slices.Sort(learners)
	return learners, nil
}

func (m *Memory) ItemStats(_ context.Context, itemID string) (difficulty.GlobalItemStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[itemID]
	if !ok {
		return difficulty.GlobalItemStats{ItemID: itemID}, nil
	}
	return s, nil
}

func (m *Memory) SaveItemStats(_ context.Context, stats difficulty.GlobalItemStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[stats.ItemID] = stats
	return nil
}

func (m *Memory) SaveQueue(_ context.Context, snap *QueueSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *snap
	c.Entries = slices.Clone(snap.Entries)
	m.queues[snap.LearnerID] = append(m.queues[snap.LearnerID], c)
	return nil
}

func (m *Memory) LatestQueue(_ context.Context, learnerID string) (*QueueSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := m.queues[learnerID]
	if len(qs) == 0 {
		return nil, ErrNotFound
	}
	c := qs[len(qs)-1]
	c.Entries = slices.Clone(c.Entries)
	return &c, nil
}

func (m *Memory) PruneQueues(_ context.Context, learnerID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := m.queues[learnerID]
	if len(qs) > keep {
		m.queues[learnerID] = slices.Clone(qs[len(qs)-keep:])
	}
	return nil
}
