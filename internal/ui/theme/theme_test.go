package theme

import (
	"strings"
	"testing"

	"github.com/abhisek/ars/internal/mastery"
)

func TestFieldKeepsValue(t *testing.T) {
	got := Field("ease", 2.5)
	if !strings.Contains(got, "ease") || !strings.Contains(got, "2.5") {
		t.Errorf("Field() = %q, want label and value", got)
	}
}

func TestTagsKeepText(t *testing.T) {
	for _, r := range []string{"leech", "overdue", "due_today"} {
		if !strings.Contains(Reason(r), r) {
			t.Errorf("Reason(%q) lost its text", r)
		}
	}
	for _, l := range mastery.Levels {
		if !strings.Contains(Level(l), string(l)) {
			t.Errorf("Level(%q) lost its text", l)
		}
	}
}
