// Package spacedrep holds the per-(learner, item) review schedule and the
// SM-2 style interval engine that advances it.
package spacedrep

import (
	"fmt"
	"time"

	"github.com/abhisek/ars/internal/config"
	"github.com/abhisek/ars/internal/mastery"
)

// ReviewSchedule is the persisted review state for one learner-item pair.
type ReviewSchedule struct {
	LearnerID string `json:"learner_id"`
	ItemID    string `json:"item_id"`

	NextReviewDate  time.Time `json:"next_review_date"`
	CurrentInterval int       `json:"current_interval"`
	EaseFactor      float64   `json:"ease_factor"`

	ConsecutiveCorrect  int   `json:"consecutive_correct"`
	ConsecutiveFailures int   `json:"consecutive_failures"`
	TotalReviews        int   `json:"total_reviews"`
	TotalCorrect        int   `json:"total_correct"`
	TotalTimeSpentMs    int64 `json:"total_time_spent_ms"`

	DifficultyScore float64 `json:"difficulty_score"`
	IsLeech         bool    `json:"is_leech"`
	LeechCount      int     `json:"leech_count"`

	MasteryLevel mastery.Level `json:"mastery_level"`
	MasteredAt   *time.Time    `json:"mastered_at,omitempty"`

	RecentPerformance History `json:"recent_performance"`

	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`

	// Version is bumped on every committed write; 0 means never stored.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSchedule returns a default schedule, due on the day it is created.
func NewSchedule(cfg config.Config, learnerID, itemID string, now time.Time) *ReviewSchedule {
	now = now.UTC()
	return &ReviewSchedule{
		LearnerID:         learnerID,
		ItemID:            itemID,
		NextReviewDate:    Date(now),
		CurrentInterval:   cfg.IntervalMin,
		EaseFactor:        cfg.EaseDefault,
		MasteryLevel:      mastery.LevelLearning,
		RecentPerformance: NewHistory(cfg.HistoryCapacity),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Clone returns a deep copy.
func (s *ReviewSchedule) Clone() *ReviewSchedule {
	c := *s
	if s.MasteredAt != nil {
		t := *s.MasteredAt
		c.MasteredAt = &t
	}
	if s.LastReviewedAt != nil {
		t := *s.LastReviewedAt
		c.LastReviewedAt = &t
	}
	c.RecentPerformance = s.RecentPerformance.clone()
	return &c
}

// ResetTo re-initializes the scheduling state to defaults while keeping the
// record's identity, creation time and version.
func (s *ReviewSchedule) ResetTo(cfg config.Config, now time.Time) {
	fresh := NewSchedule(cfg, s.LearnerID, s.ItemID, now)
	fresh.CreatedAt = s.CreatedAt
	fresh.Version = s.Version
	*s = *fresh
}

// Sanitize pulls out-of-range values back into bounds. It returns a
// description of each correction so the caller can log them.
func (s *ReviewSchedule) Sanitize(cfg config.Config) []string {
	var fixes []string

	if s.EaseFactor < cfg.EaseMin || s.EaseFactor > cfg.EaseMax {
		fixes = append(fixes, fmt.Sprintf("ease_factor %v clamped", s.EaseFactor))
		s.EaseFactor = clampFloat(s.EaseFactor, cfg.EaseMin, cfg.EaseMax)
	}
	if s.CurrentInterval < cfg.IntervalMin || s.CurrentInterval > cfg.IntervalMax {
		fixes = append(fixes, fmt.Sprintf("current_interval %d clamped", s.CurrentInterval))
		s.CurrentInterval = clampInt(s.CurrentInterval, cfg.IntervalMin, cfg.IntervalMax)
	}
	if s.DifficultyScore < 0 || s.DifficultyScore > 1 {
		fixes = append(fixes, fmt.Sprintf("difficulty_score %v clamped", s.DifficultyScore))
		s.DifficultyScore = clampFloat(s.DifficultyScore, 0, 1)
	}
	for name, v := range map[string]*int{
		"consecutive_correct":  &s.ConsecutiveCorrect,
		"consecutive_failures": &s.ConsecutiveFailures,
		"total_reviews":        &s.TotalReviews,
		"total_correct":        &s.TotalCorrect,
		"leech_count":          &s.LeechCount,
	} {
		if *v < 0 {
			fixes = append(fixes, fmt.Sprintf("%s %d reset to 0", name, *v))
			*v = 0
		}
	}
	if s.TotalCorrect > s.TotalReviews {
		fixes = append(fixes, fmt.Sprintf("total_correct %d capped at total_reviews %d", s.TotalCorrect, s.TotalReviews))
		s.TotalCorrect = s.TotalReviews
	}
	if s.TotalTimeSpentMs < 0 {
		fixes = append(fixes, fmt.Sprintf("total_time_spent_ms %d reset to 0", s.TotalTimeSpentMs))
		s.TotalTimeSpentMs = 0
	}
	if s.MasteryLevel.Rank() < 0 {
		fixes = append(fixes, fmt.Sprintf("mastery_level %q reset to learning", s.MasteryLevel))
		s.MasteryLevel = mastery.LevelLearning
	}
	if s.RecentPerformance.Cap() != cfg.HistoryCapacity {
		s.RecentPerformance.Resize(cfg.HistoryCapacity)
	}
	return fixes
}

// UserErrorRate is the learner's failure share on this item so far.
func (s *ReviewSchedule) UserErrorRate() float64 {
	if s.TotalReviews == 0 {
		return 0
	}
	return 1 - float64(s.TotalCorrect)/float64(s.TotalReviews)
}
