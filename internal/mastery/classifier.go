package mastery

import (
	"time"

	"github.com/abhisek/ars/internal/config"
)

// Input is the schedule state the classifier looks at, taken after the
// interval and ease updates for the current review have been applied.
type Input struct {
	Current            Level
	ConsecutiveCorrect int
	EaseFactor         float64
	CurrentInterval    int
	MasteredAt         *time.Time
	// Failed is true when the review being classified was a failure.
	Failed bool
}

// Outcome is the classifier's verdict.
type Outcome struct {
	Level      Level
	MasteredAt *time.Time
	Transition *Transition // nil when the level did not change
}

// Classify maps schedule state onto a mastery tier.
//
// Every tier except Permanent is recomputed from scratch. Permanent is held
// until a failure; with PermanentDemoteOnFailure disabled it is never lost.
// MasteredAt is stamped on entry to Mastered and cleared whenever the item
// falls below it, so Permanent always reflects a continuous hold.
func Classify(cfg config.Config, in Input, now time.Time) Outcome {
	if in.Current == LevelPermanent {
		if !in.Failed || !cfg.PermanentDemoteOnFailure {
			return Outcome{Level: LevelPermanent, MasteredAt: in.MasteredAt}
		}
	}

	level := baseLevel(cfg, in)
	masteredAt := in.MasteredAt

	if level == LevelMastered {
		if masteredAt == nil {
			t := now
			masteredAt = &t
		}
		held := now.Sub(*masteredAt)
		if held >= time.Duration(cfg.PermanentDurationDays)*24*time.Hour {
			level = LevelPermanent
		}
	} else {
		masteredAt = nil
	}

	out := Outcome{Level: level, MasteredAt: masteredAt}
	if level != in.Current {
		out.Transition = &Transition{
			From:    in.Current,
			To:      level,
			Trigger: trigger(in, level),
		}
	}
	return out
}

func baseLevel(cfg config.Config, in Input) Level {
	cc := in.ConsecutiveCorrect
	threshold := cfg.MasteryConsecutiveThreshold

	switch {
	case cc >= threshold && in.EaseFactor > cfg.MasteryEaseThreshold && in.CurrentInterval > cfg.MasteryIntervalThreshold:
		return LevelMastered
	case cc >= threshold && in.EaseFactor > cfg.KnownEaseThreshold:
		return LevelKnown
	case cc >= 3:
		// A long streak on a low-ease item stays Familiar.
		return LevelFamiliar
	default:
		return LevelLearning
	}
}

func trigger(in Input, to Level) string {
	switch {
	case in.Failed:
		return "review-failure"
	case to == LevelPermanent:
		return "time-held"
	case to.Rank() > in.Current.Rank():
		return "review-success"
	default:
		return "ease-decline"
	}
}
