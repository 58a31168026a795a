package difficulty

import "time"

// GlobalItemStats are the cross-learner statistics for one item.
type GlobalItemStats struct {
	ItemID                string    `json:"item_id"`
	TotalReviews          int       `json:"total_reviews"`
	TotalCorrect          int       `json:"total_correct"`
	GlobalErrorRate       float64   `json:"global_error_rate"`
	AverageEaseFactor     float64   `json:"average_ease_factor"`
	AverageResponseTimeMs float64   `json:"average_response_time_ms"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Observation is one applied review as seen by the aggregator.
type Observation struct {
	ItemID         string
	Correct        bool
	EaseFactor     float64 // the learner's ease after the review
	ResponseTimeMs int64
}

// Apply folds an observation into the running averages.
func (s *GlobalItemStats) Apply(obs Observation, now time.Time) {
	s.TotalReviews++
	if obs.Correct {
		s.TotalCorrect++
	}
	n := float64(s.TotalReviews)
	s.AverageEaseFactor += (obs.EaseFactor - s.AverageEaseFactor) / n
	s.AverageResponseTimeMs += (float64(obs.ResponseTimeMs) - s.AverageResponseTimeMs) / n
	s.GlobalErrorRate = 1 - float64(s.TotalCorrect)/n
	s.UpdatedAt = now
}
