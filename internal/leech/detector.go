// Package leech flags items a learner keeps failing despite repeated
// attempts.
package leech

import "github.com/abhisek/ars/internal/config"

// Signals are the per-schedule counters the detector reads.
type Signals struct {
	ConsecutiveFailures   int
	EaseFactor            float64
	TotalTimeSpentSeconds float64
	TotalAttempts         int
}

// Detect reports whether the signals describe a leech. Any one trigger is
// enough.
func Detect(cfg config.Config, s Signals) bool {
	if s.ConsecutiveFailures >= cfg.LeechFailureStreak {
		return true
	}
	if s.EaseFactor < cfg.LeechEaseThreshold {
		return true
	}
	return s.TotalTimeSpentSeconds > float64(cfg.LeechTimeThresholdS) &&
		s.TotalAttempts > cfg.LeechMinAttempts
}

// Update recomputes the leech flag and returns the new flag and leech count.
// The count only grows on a false -> true transition, so an item that stays
// flagged across several reviews is counted once.
func Update(cfg config.Config, wasLeech bool, count int, s Signals) (isLeech bool, newCount int, triggered bool) {
	isLeech = Detect(cfg, s)
	triggered = isLeech && !wasLeech
	if triggered {
		count++
	}
	return isLeech, count, triggered
}
