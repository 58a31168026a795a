// Package difficulty scores how hard a single review was and keeps the
// cross-learner per-item statistics that feed the score.
package difficulty

import "math"

// Factor weights. They sum to 1 so the score stays in [0, 1].
const (
	WeightTime       = 0.2
	WeightHesitation = 0.1
	WeightGlobal     = 0.2
	WeightUser       = 0.3
	WeightEase       = 0.2
)

// Inputs are the signals a difficulty score is computed from.
type Inputs struct {
	ResponseTimeMs  int64
	ChangedAnswer   bool
	GlobalErrorRate float64
	UserErrorRate   float64
	EaseFactor      float64
}

// Score combines the normalized factors into a difficulty in [0, 1],
// rounded to three decimals.
func Score(in Inputs) float64 {
	timeFactor := clamp((float64(in.ResponseTimeMs)-3000)/9000, 0, 1)

	hesitation := 0.0
	if in.ChangedAnswer {
		hesitation = 1.0
	}

	global := clamp(in.GlobalErrorRate, 0, 1)
	user := clamp(in.UserErrorRate, 0, 1)
	ease := clamp(1-(in.EaseFactor-1.3)/1.7, 0, 1)

	sum := WeightTime*timeFactor +
		WeightHesitation*hesitation +
		WeightGlobal*global +
		WeightUser*user +
		WeightEase*ease

	return math.Round(clamp(sum, 0, 1)*1000) / 1000
}

// UserErrorRate is the share of a learner's reviews of an item that failed.
// Zero reviews means no evidence, which scores as zero.
func UserErrorRate(totalReviews, totalCorrect int) float64 {
	if totalReviews <= 0 {
		return 0
	}
	return 1 - float64(totalCorrect)/float64(totalReviews)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
