package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/ars/internal/spacedrep"
)

var (
	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("store: not found")

	// ErrVersionConflict is returned when a write's expected version does
	// not match the stored one.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrDuplicateKey is returned when a review's idempotency key has
	// already been applied.
	ErrDuplicateKey = errors.New("store: idempotency key already applied")
)

// ReviewLogEntry is the append-only record of one applied review. Its
// idempotency key doubles as the replay guard.
type ReviewLogEntry struct {
	IdempotencyKey  string
	Sequence        int64 // assigned by the store
	LearnerID       string
	ItemID          string
	IsCorrect       bool
	ResponseTimeMs  int64
	ChangedAnswer   bool
	Performance     int
	DifficultyScore float64
	Interval        int
	ReviewedAt      time.Time
}

// ResetRecord is the audit row written when a schedule is reset. It keeps
// the counters the reset wiped.
type ResetRecord struct {
	ID                string
	LearnerID         string
	ItemID            string
	Reason            string
	PriorTotalReviews int
	PriorTotalCorrect int
	PriorLeechCount   int
	PriorMasteryLevel string
	PriorEaseFactor   float64
	PriorInterval     int
	ResetAt           time.Time
}

// ScanFilter narrows a schedule scan.
type ScanFilter struct {
	LearnerID string
	// DueThrough, when non-zero, keeps only records due on or before that day.
	DueThrough time.Time
}

// ScheduleRepo persists review schedules with optimistic concurrency.
type ScheduleRepo interface {
	// Load returns the stored schedule, or ErrNotFound.
	Load(ctx context.Context, learnerID, itemID string) (*spacedrep.ReviewSchedule, error)

	// Save writes sched if the stored version still equals sched.Version
	// (0 means the record must not exist yet) and bumps sched.Version on
	// success. A non-nil entry is appended to the review log in the same
	// transaction; ErrDuplicateKey means its key was applied before.
	Save(ctx context.Context, sched *spacedrep.ReviewSchedule, entry *ReviewLogEntry) error

	// SaveReset is Save for an explicit reset, recording the audit row.
	SaveReset(ctx context.Context, sched *spacedrep.ReviewSchedule, rec ResetRecord) error

	// LookupReview returns the log entry for an idempotency key, or ErrNotFound.
	LookupReview(ctx context.Context, key string) (*ReviewLogEntry, error)

	// Scan visits matching schedules from a single point-in-time read,
	// ordered by next review date then item id. Returning false from
	// visit stops the scan.
	Scan(ctx context.Context, f ScanFilter, visit func(*spacedrep.ReviewSchedule) bool) error

	// Learners lists every learner id with at least one schedule.
	Learners(ctx context.Context) ([]string, error)
}

// QueueSnapshotEntry is one queued item in a stored queue.
type QueueSnapshotEntry struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// QueueSnapshot is a precomputed review queue.
type QueueSnapshot struct {
	ID          string
	LearnerID   string
	GeneratedAt time.Time
	Partial     bool
	Entries     []QueueSnapshotEntry
}

// QueueRepo stores precomputed queues.
type QueueRepo interface {
	// SaveQueue stores a new snapshot.
	SaveQueue(ctx context.Context, snap *QueueSnapshot) error

	// LatestQueue returns the newest snapshot for a learner, or ErrNotFound.
	LatestQueue(ctx context.Context, learnerID string) (*QueueSnapshot, error)

	// PruneQueues deletes all but the keep most recent snapshots of a learner.
	PruneQueues(ctx context.Context, learnerID string, keep int) error
}
