package mastery

import "fmt"

// Level represents an item's position in the mastery lifecycle.
type Level string

const (
	LevelLearning  Level = "learning"
	LevelFamiliar  Level = "familiar"
	LevelKnown     Level = "known"
	LevelMastered  Level = "mastered"
	LevelPermanent Level = "permanent"
)

// Levels lists every tier from weakest to strongest.
var Levels = []Level{LevelLearning, LevelFamiliar, LevelKnown, LevelMastered, LevelPermanent}

// Rank returns the tier's position in Levels, or -1 for an unknown value.
func (l Level) Rank() int {
	for i, lv := range Levels {
		if lv == l {
			return i
		}
	}
	return -1
}

// ParseLevel converts a stored string back into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if l.Rank() < 0 {
		return "", fmt.Errorf("unknown mastery level %q", s)
	}
	return l, nil
}

// Transition records a mastery tier change for display and event logging.
type Transition struct {
	From    Level
	To      Level
	Trigger string // "review-success", "review-failure", "ease-decline", "time-held"
}

// Promoted reports whether the transition moved to a stronger tier.
func (t *Transition) Promoted() bool {
	return t != nil && t.To.Rank() > t.From.Rank()
}
