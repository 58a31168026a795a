package leech

import (
	"testing"

	"github.com/abhisek/ars/internal/config"
)

func TestDetect(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		name string
		in   Signals
		want bool
	}{
		{"healthy", Signals{ConsecutiveFailures: 0, EaseFactor: 2.5, TotalTimeSpentSeconds: 30, TotalAttempts: 4}, false},
		{"two failures", Signals{ConsecutiveFailures: 2, EaseFactor: 2.0}, false},
		{"three failures", Signals{ConsecutiveFailures: 3, EaseFactor: 2.0}, true},
		{"low ease", Signals{EaseFactor: 1.49}, true},
		{"ease at threshold", Signals{EaseFactor: 1.5}, false},
		{"long time many attempts", Signals{EaseFactor: 2.5, TotalTimeSpentSeconds: 901, TotalAttempts: 6}, true},
		{"long time few attempts", Signals{EaseFactor: 2.5, TotalTimeSpentSeconds: 5000, TotalAttempts: 5}, false},
		{"time at threshold", Signals{EaseFactor: 2.5, TotalTimeSpentSeconds: 900, TotalAttempts: 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(cfg, tt.in); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdate_CountsOnlyTransitions(t *testing.T) {
	cfg := config.Default()
	failing := Signals{ConsecutiveFailures: 3, EaseFactor: 2.0}

	isLeech, count, triggered := Update(cfg, false, 0, failing)
	if !isLeech || count != 1 || !triggered {
		t.Fatalf("first flag = (%v, %d, %v), want (true, 1, true)", isLeech, count, triggered)
	}

	failing.ConsecutiveFailures = 4
	isLeech, count, triggered = Update(cfg, isLeech, count, failing)
	if !isLeech || count != 1 || triggered {
		t.Errorf("still flagged = (%v, %d, %v), want (true, 1, false)", isLeech, count, triggered)
	}

	recovered := Signals{ConsecutiveFailures: 0, EaseFactor: 2.0}
	isLeech, count, _ = Update(cfg, isLeech, count, recovered)
	if isLeech || count != 1 {
		t.Errorf("recovered = (%v, %d), want (false, 1)", isLeech, count)
	}

	isLeech, count, triggered = Update(cfg, isLeech, count, Signals{ConsecutiveFailures: 3, EaseFactor: 2.0})
	if !isLeech || count != 2 || !triggered {
		t.Errorf("second flag = (%v, %d, %v), want (true, 2, true)", isLeech, count, triggered)
	}
}
