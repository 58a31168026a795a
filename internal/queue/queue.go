// Package queue builds a learner's daily review queue from a single
// snapshot of their due schedules.
package queue

import (
	"time"

	"github.com/abhisek/ars/internal/spacedrep"
)

// Reason tags why an item was queued.
type Reason string

const (
	ReasonLeech    Reason = "leech"
	ReasonOverdue  Reason = "overdue"
	ReasonDueToday Reason = "due_today"
)

// Entry is one queued item.
type Entry struct {
	ItemID string `json:"item_id"`
	Reason Reason `json:"reason"`

	// Schedule is the snapshot the entry was selected from. It is nil for
	// queues restored from a stored snapshot.
	Schedule *spacedrep.ReviewSchedule `json:"-"`
}

func (e Entry) isLeech() bool {
	if e.Schedule != nil {
		return e.Schedule.IsLeech
	}
	return e.Reason == ReasonLeech
}

// Queue is an ordered review queue for one learner.
type Queue struct {
	LearnerID   string    `json:"learner_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`

	// Deferred holds selected leeches that could not be placed without
	// sitting next to another leech.
	Deferred []Entry `json:"deferred,omitempty"`

	// Partial is set when the scan hit its time budget before reading
	// every due record.
	Partial bool `json:"partial"`
}

// ItemIDs returns the queued item ids in order.
func (q *Queue) ItemIDs() []string {
	ids := make([]string, len(q.Entries))
	for i, e := range q.Entries {
		ids[i] = e.ItemID
	}
	return ids
}

// interleave orders entries so no two leeches are adjacent. A leech goes
// first, then at most one leech follows each run of k non-leeches. Relative
// order within each class is kept. When non-leeches run out a single
// trailing leech is allowed; any leeches left after that are deferred.
func interleave(entries []Entry, k int) (placed, deferred []Entry) {
	if k < 1 {
		k = 1
	}

	var leeches, others []Entry
	for _, e := range entries {
		if e.isLeech() {
			leeches = append(leeches, e)
		} else {
			others = append(others, e)
		}
	}

	placed = make([]Entry, 0, len(entries))
	li, oi := 0, 0
	sinceLeech := k
	lastWasLeech := false

	for li < len(leeches) || oi < len(others) {
		leechFits := li < len(leeches) && !lastWasLeech &&
			(sinceLeech >= k || oi == len(others))
		switch {
		case leechFits:
			placed = append(placed, leeches[li])
			li++
			sinceLeech = 0
			lastWasLeech = true
		case oi < len(others):
			placed = append(placed, others[oi])
			oi++
			sinceLeech++
			lastWasLeech = false
		default:
			return placed, leeches[li:]
		}
	}
	return placed, nil
}
