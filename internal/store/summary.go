package store

import (
	"context"
	"time"

	"github.com/abhisek/ars/internal/mastery"
	"github.com/abhisek/ars/internal/spacedrep"
)

// Summary aggregates one learner's schedules.
type Summary struct {
	LearnerID        string
	Total            int
	ByLevel          map[mastery.Level]int
	Leeches          int
	DueToday         int
	Overdue          int
	AverageEase      float64
	TotalReviews     int
	TotalCorrect     int
	TotalTimeSpentMs int64
}

// Accuracy is the share of correct reviews, or 0 before any review.
func (s *Summary) Accuracy() float64 {
	if s.TotalReviews == 0 {
		return 0
	}
	return float64(s.TotalCorrect) / float64(s.TotalReviews)
}

// Summarize walks every schedule of learnerID in a single scan.
func Summarize(ctx context.Context, repo ScheduleRepo, learnerID string, today time.Time) (*Summary, error) {
	sum := &Summary{
		LearnerID: learnerID,
		ByLevel:   make(map[mastery.Level]int, len(mastery.Levels)),
	}
	var easeTotal float64

	err := repo.Scan(ctx, ScanFilter{LearnerID: learnerID}, func(s *spacedrep.ReviewSchedule) bool {
		sum.Total++
		sum.ByLevel[s.MasteryLevel]++
		if s.IsLeech {
			sum.Leeches++
		}
		switch s.Status(today) {
		case spacedrep.StatusOverdue:
			sum.Overdue++
		case spacedrep.StatusDueToday:
			sum.DueToday++
		}
		easeTotal += s.EaseFactor
		sum.TotalReviews += s.TotalReviews
		sum.TotalCorrect += s.TotalCorrect
		sum.TotalTimeSpentMs += s.TotalTimeSpentMs
		return true
	})
	if err != nil {
		return nil, err
	}

	if sum.Total > 0 {
		sum.AverageEase = easeTotal / float64(sum.Total)
	}
	return sum, nil
}
