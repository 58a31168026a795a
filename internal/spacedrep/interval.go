package spacedrep

import (
	"math"

	"github.com/abhisek/ars/internal/config"
)

// Performance is the 0-5 recall quality derived from a review outcome.
type Performance int

// Response-time cut-offs for rating correct answers.
const (
	FastResponseMs   = 3000
	NormalResponseMs = 6000
)

// PassingPerformance is the lowest rating that counts as a successful review.
const PassingPerformance Performance = 3

// LearningSteps are the fixed intervals, in days, for the first three
// consecutive successes. From the fourth on, intervals grow by the ease factor.
var LearningSteps = []int{1, 3, 7}

// PerformanceFor rates a review outcome. Correct answers are graded by
// latency; incorrect ones by whether the learner hesitated.
func PerformanceFor(correct bool, responseTimeMs int64, changedAnswer bool) Performance {
	if correct {
		switch {
		case responseTimeMs < FastResponseMs:
			return 5
		case responseTimeMs < NormalResponseMs:
			return 4
		default:
			return 3
		}
	}
	if changedAnswer {
		return 2
	}
	return 1
}

// Passed reports whether the rating is a successful recall.
func (p Performance) Passed() bool {
	return p >= PassingPerformance
}

// UpdateEase applies the SM-2 ease adjustment for a rating, clamps the
// result into the configured bounds and rounds it to two decimals.
func UpdateEase(cfg config.Config, ease float64, p Performance) float64 {
	q := float64(5 - p)
	next := ease + (0.1 - q*(0.08+q*0.02))
	next = clampFloat(next, cfg.EaseMin, cfg.EaseMax)
	return math.Round(next*100) / 100
}

// NextInterval returns the interval in days after a review. streak is the
// consecutive-correct count after this review has been counted.
func NextInterval(cfg config.Config, currentInterval int, newEase float64, streak int, p Performance) int {
	var next int
	switch {
	case !p.Passed():
		next = cfg.IntervalMin
	case streak >= 1 && streak <= len(LearningSteps):
		next = LearningSteps[streak-1]
	default:
		next = int(math.RoundToEven(float64(currentInterval) * newEase))
	}
	return clampInt(next, cfg.IntervalMin, cfg.IntervalMax)
}

// Step is the result of scheduling one review.
type Step struct {
	Interval           int
	EaseFactor         float64
	ConsecutiveCorrect int
}

// Advance runs the interval scheduler for one rated review. It is pure:
// the same inputs always give the same Step.
func Advance(cfg config.Config, currentInterval int, ease float64, consecutiveCorrect int, p Performance) Step {
	newEase := UpdateEase(cfg, ease, p)
	streak := 0
	if p.Passed() {
		streak = consecutiveCorrect + 1
	}
	return Step{
		Interval:           NextInterval(cfg, currentInterval, newEase, streak, p),
		EaseFactor:         newEase,
		ConsecutiveCorrect: streak,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
