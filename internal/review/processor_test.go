package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/ars/internal/config"
	"github.com/abhisek/ars/internal/difficulty"
	"github.com/abhisek/ars/internal/mastery"
	"github.com/abhisek/ars/internal/spacedrep"
	"github.com/abhisek/ars/internal/store"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStats records observations and serves canned global stats.
type fakeStats struct {
	mu        sync.Mutex
	stats     difficulty.GlobalItemStats
	lookupErr error
	observed  []difficulty.Observation
}

func (f *fakeStats) Lookup(_ context.Context, itemID string) (difficulty.GlobalItemStats, error) {
	if f.lookupErr != nil {
		return difficulty.GlobalItemStats{}, f.lookupErr
	}
	s := f.stats
	s.ItemID = itemID
	return s, nil
}

func (f *fakeStats) Record(obs difficulty.Observation) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, obs)
	return true
}

func newTestProcessor(repo store.ScheduleRepo, stats GlobalStats) *Processor {
	return NewProcessor(config.Default(), repo, stats, discardLogger(), WithClock(func() time.Time { return now }))
}

func event(key string, correct bool, rt int64) Event {
	return Event{
		LearnerID:      "learner-1",
		ItemID:         "item-1",
		IsCorrect:      correct,
		ResponseTimeMs: rt,
		IdempotencyKey: key,
	}
}

func TestProcess_FirstReviewCreatesSchedule(t *testing.T) {
	repo := store.NewMemory()
	p := newTestProcessor(repo, nil)

	res, err := p.Process(context.Background(), event("k1", true, 2000))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	s := res.Schedule
	if res.Performance != 5 {
		t.Errorf("Performance = %d, want 5", res.Performance)
	}
	if s.CurrentInterval != 1 || s.ConsecutiveCorrect != 1 {
		t.Errorf("interval/cc = %d/%d, want 1/1", s.CurrentInterval, s.ConsecutiveCorrect)
	}
	if s.EaseFactor != 2.6 {
		t.Errorf("EaseFactor = %v, want 2.6", s.EaseFactor)
	}
	if want := spacedrep.Date(now).AddDate(0, 0, 1); !s.NextReviewDate.Equal(want) {
		t.Errorf("NextReviewDate = %v, want %v", s.NextReviewDate, want)
	}
	if s.TotalReviews != 1 || s.TotalCorrect != 1 || s.TotalTimeSpentMs != 2000 {
		t.Errorf("totals = %d/%d/%d, want 1/1/2000", s.TotalReviews, s.TotalCorrect, s.TotalTimeSpentMs)
	}
	if s.RecentPerformance.Len() != 1 {
		t.Errorf("RecentPerformance.Len() = %d, want 1", s.RecentPerformance.Len())
	}
	if s.Version != 1 {
		t.Errorf("Version = %d, want 1", s.Version)
	}

	stored, err := repo.Load(context.Background(), "learner-1", "item-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stored.TotalReviews != 1 {
		t.Errorf("stored TotalReviews = %d, want 1", stored.TotalReviews)
	}
}

func TestProcess_UsesEventReviewTime(t *testing.T) {
	repo := store.NewMemory()
	p := newTestProcessor(repo, nil)

	at := time.Date(2025, 2, 26, 21, 15, 0, 0, time.UTC)
	ev := event("k1", true, 2000)
	ev.ReviewedAt = &at

	res, err := p.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	s := res.Schedule
	if s.LastReviewedAt == nil || !s.LastReviewedAt.Equal(at) {
		t.Errorf("LastReviewedAt = %v, want %v", s.LastReviewedAt, at)
	}
	if want := spacedrep.Date(at).AddDate(0, 0, 1); !s.NextReviewDate.Equal(want) {
		t.Errorf("NextReviewDate = %v, want %v", s.NextReviewDate, want)
	}

	logged, err := repo.LookupReview(context.Background(), "k1")
	if err != nil {
		t.Fatalf("LookupReview() error = %v", err)
	}
	if !logged.ReviewedAt.Equal(at) {
		t.Errorf("logged ReviewedAt = %v, want %v", logged.ReviewedAt, at)
	}
}

func TestProcess_GoodReviewProgression(t *testing.T) {
	p := newTestProcessor(store.NewMemory(), nil)

	want := []int{1, 3, 7, 18}
	for i, w := range want {
		res, err := p.Process(context.Background(), event(fmt.Sprintf("k%d", i), true, 4500))
		if err != nil {
			t.Fatalf("review %d: %v", i+1, err)
		}
		if res.Performance != 4 {
			t.Fatalf("review %d performance = %d, want 4", i+1, res.Performance)
		}
		if got := res.Schedule.CurrentInterval; got != w {
			t.Errorf("review %d interval = %d, want %d", i+1, got, w)
		}
	}
}

func TestProcess_FailureResetsStreak(t *testing.T) {
	p := newTestProcessor(store.NewMemory(), nil)
	ctx := context.Background()

	for i := range 4 {
		if _, err := p.Process(ctx, event(fmt.Sprintf("ok%d", i), true, 1000)); err != nil {
			t.Fatal(err)
		}
	}
	res, err := p.Process(ctx, event("fail", false, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Schedule.ConsecutiveCorrect != 0 || res.Schedule.CurrentInterval != 1 {
		t.Errorf("cc/interval = %d/%d, want 0/1", res.Schedule.ConsecutiveCorrect, res.Schedule.CurrentInterval)
	}
	if res.Schedule.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", res.Schedule.ConsecutiveFailures)
	}
	if res.Transition == nil || res.Transition.To != mastery.LevelLearning {
		t.Errorf("Transition = %+v, want -> learning", res.Transition)
	}
}

func TestProcess_ThreeFailuresFlagLeech(t *testing.T) {
	p := newTestProcessor(store.NewMemory(), nil)
	ctx := context.Background()

	var res *Result
	for i := range 3 {
		ev := event(fmt.Sprintf("f%d", i), false, 1000)
		ev.ChangedAnswer = true // rating 2 keeps ease above the leech threshold
		var err error
		res, err = p.Process(ctx, ev)
		if err != nil {
			t.Fatal(err)
		}
		if i < 2 && res.Schedule.IsLeech {
			t.Fatalf("flagged as leech after %d failures", i+1)
		}
	}

	s := res.Schedule
	if s.EaseFactor <= 1.5 {
		t.Fatalf("EaseFactor = %v, want > 1.5 for this check", s.EaseFactor)
	}
	if !s.IsLeech || !res.LeechTriggered {
		t.Errorf("IsLeech/LeechTriggered = %v/%v, want true/true", s.IsLeech, res.LeechTriggered)
	}
	if s.LeechCount != 1 {
		t.Errorf("LeechCount = %d, want 1", s.LeechCount)
	}

	// Staying a leech does not count again.
	ev := event("f3", false, 1000)
	ev.ChangedAnswer = true
	res, err := p.Process(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	if res.LeechTriggered || res.Schedule.LeechCount != 1 {
		t.Errorf("LeechTriggered/LeechCount = %v/%d, want false/1", res.LeechTriggered, res.Schedule.LeechCount)
	}
}

func TestProcess_IdempotentReplay(t *testing.T) {
	repo := store.NewMemory()
	stats := &fakeStats{}
	p := newTestProcessor(repo, stats)
	ctx := context.Background()

	first, err := p.Process(ctx, event("same", true, 2000))
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Process(ctx, event("same", true, 2000))
	if err != nil {
		t.Fatal(err)
	}

	if first.Replayed || !second.Replayed {
		t.Errorf("Replayed = %v/%v, want false/true", first.Replayed, second.Replayed)
	}
	if second.Schedule.TotalReviews != 1 || second.Schedule.Version != 1 {
		t.Errorf("after replay TotalReviews/Version = %d/%d, want 1/1",
			second.Schedule.TotalReviews, second.Schedule.Version)
	}
	if len(stats.observed) != 1 {
		t.Errorf("aggregated %d observations, want 1", len(stats.observed))
	}
}

func TestProcess_ConcurrentReplaysApplyOnce(t *testing.T) {
	repo := store.NewMemory()
	p := newTestProcessor(repo, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Process(ctx, event("dup", true, 2000)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Process() error = %v", err)
	}

	s, err := repo.Load(ctx, "learner-1", "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalReviews != 1 {
		t.Errorf("TotalReviews = %d, want 1", s.TotalReviews)
	}
}

func TestProcess_KeyReusedForAnotherItem(t *testing.T) {
	p := newTestProcessor(store.NewMemory(), nil)
	ctx := context.Background()

	if _, err := p.Process(ctx, event("k", true, 2000)); err != nil {
		t.Fatal(err)
	}
	other := event("k", true, 2000)
	other.ItemID = "item-2"
	_, err := p.Process(ctx, other)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Process() error = %v, want ErrInvalidInput", err)
	}
}

func TestProcess_InvalidInputLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"negative response time", event("k", true, -1)},
		{"empty learner", Event{ItemID: "item-1", IdempotencyKey: "k"}},
		{"empty item", Event{LearnerID: "learner-1", IdempotencyKey: "k"}},
		{"empty key", Event{LearnerID: "learner-1", ItemID: "item-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := store.NewMemory()
			p := newTestProcessor(repo, nil)

			_, err := p.Process(context.Background(), tt.ev)
			var inv *InvalidInputError
			if !errors.As(err, &inv) || !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Process() error = %v, want *InvalidInputError", err)
			}
			if _, err := repo.Load(context.Background(), "learner-1", "item-1"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Load() error = %v, want ErrNotFound", err)
			}
		})
	}
}

// conflictingRepo fails every write with a version conflict.
type conflictingRepo struct {
	store.ScheduleRepo
	saves int
}

func (r *conflictingRepo) Save(context.Context, *spacedrep.ReviewSchedule, *store.ReviewLogEntry) error {
	r.saves++
	return store.ErrVersionConflict
}

func TestProcess_ConflictAfterRetries(t *testing.T) {
	repo := &conflictingRepo{ScheduleRepo: store.NewMemory()}
	p := newTestProcessor(repo, nil)

	_, err := p.Process(context.Background(), event("k", true, 2000))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Process() error = %v, want ErrConflict", err)
	}
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("error does not wrap store.ErrVersionConflict: %v", err)
	}
	if repo.saves != config.Default().MaxSaveRetries {
		t.Errorf("saves = %d, want %d", repo.saves, config.Default().MaxSaveRetries)
	}
}

func TestProcess_CorruptScheduleIsClamped(t *testing.T) {
	repo := store.NewMemory()
	ctx := context.Background()

	bad := spacedrep.NewSchedule(config.Default(), "learner-1", "item-1", now)
	bad.EaseFactor = 7.5
	bad.CurrentInterval = 9000
	bad.ConsecutiveCorrect = 10
	if err := repo.Save(ctx, bad, nil); err != nil {
		t.Fatal(err)
	}

	p := newTestProcessor(repo, nil)
	res, err := p.Process(ctx, event("k", true, 2000))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Schedule.EaseFactor > 3.0 {
		t.Errorf("EaseFactor = %v, want <= 3.0", res.Schedule.EaseFactor)
	}
	if res.Schedule.CurrentInterval > 365 {
		t.Errorf("CurrentInterval = %d, want <= 365", res.Schedule.CurrentInterval)
	}
}

func TestProcess_BoundsHoldForRandomSequences(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewPCG(7, 11))
	p := newTestProcessor(store.NewMemory(), nil)
	ctx := context.Background()

	for i := range 300 {
		ev := event(fmt.Sprintf("k%d", i), rng.IntN(3) > 0, rng.Int64N(15000))
		ev.ChangedAnswer = rng.IntN(2) == 0
		res, err := p.Process(ctx, ev)
		if err != nil {
			t.Fatalf("review %d: %v", i, err)
		}
		s := res.Schedule
		if s.EaseFactor < cfg.EaseMin || s.EaseFactor > cfg.EaseMax {
			t.Fatalf("review %d: EaseFactor = %v out of bounds", i, s.EaseFactor)
		}
		if s.CurrentInterval < cfg.IntervalMin || s.CurrentInterval > cfg.IntervalMax {
			t.Fatalf("review %d: CurrentInterval = %d out of bounds", i, s.CurrentInterval)
		}
		if s.DifficultyScore < 0 || s.DifficultyScore > 1 {
			t.Fatalf("review %d: DifficultyScore = %v out of bounds", i, s.DifficultyScore)
		}
		if !res.Performance.Passed() && (s.ConsecutiveCorrect != 0 || s.CurrentInterval != 1) {
			t.Fatalf("review %d: failure left cc=%d interval=%d", i, s.ConsecutiveCorrect, s.CurrentInterval)
		}
	}
}

func TestProcess_GlobalStatsFeedScoreAndAggregation(t *testing.T) {
	stats := &fakeStats{stats: difficulty.GlobalItemStats{GlobalErrorRate: 1}}
	p := newTestProcessor(store.NewMemory(), stats)

	res, err := p.Process(context.Background(), event("k", true, 2000))
	if err != nil {
		t.Fatal(err)
	}
	// time 0, hesitation 0, global 1*0.2, user 0, ease (1-(2.5-1.3)/1.7)*0.2
	want := difficulty.Score(difficulty.Inputs{ResponseTimeMs: 2000, GlobalErrorRate: 1, EaseFactor: 2.5})
	if res.Schedule.DifficultyScore != want {
		t.Errorf("DifficultyScore = %v, want %v", res.Schedule.DifficultyScore, want)
	}
	if len(stats.observed) != 1 || stats.observed[0].EaseFactor != res.Schedule.EaseFactor {
		t.Errorf("observed = %+v, want one observation with post-review ease", stats.observed)
	}
}

func TestProcess_StatsLookupFailureIsSoft(t *testing.T) {
	stats := &fakeStats{lookupErr: errors.New("db down")}
	p := newTestProcessor(store.NewMemory(), stats)

	if _, err := p.Process(context.Background(), event("k", true, 2000)); err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
}

func TestGet(t *testing.T) {
	p := newTestProcessor(store.NewMemory(), nil)
	ctx := context.Background()

	if _, err := p.Get(ctx, "learner-1", "item-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := p.Process(ctx, event("k", true, 2000)); err != nil {
		t.Fatal(err)
	}
	s, err := p.Get(ctx, "learner-1", "item-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.TotalReviews != 1 {
		t.Errorf("TotalReviews = %d, want 1", s.TotalReviews)
	}
}

func TestEnroll(t *testing.T) {
	p := newTestProcessor(store.NewMemory(), nil)
	ctx := context.Background()

	s, created, err := p.Enroll(ctx, "learner-1", "item-1")
	if err != nil || !created {
		t.Fatalf("Enroll() = %v, %v; want created", created, err)
	}
	if !s.IsDue(now) {
		t.Error("enrolled item should be due today")
	}

	_, created, err = p.Enroll(ctx, "learner-1", "item-1")
	if err != nil || created {
		t.Errorf("second Enroll() = %v, %v; want existing", created, err)
	}
}

func TestReset(t *testing.T) {
	repo := store.NewMemory()
	p := newTestProcessor(repo, nil)
	ctx := context.Background()

	if _, err := p.Reset(ctx, "learner-1", "item-1", "why"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Reset() of unknown schedule error = %v, want ErrNotFound", err)
	}

	for i := range 5 {
		if _, err := p.Process(ctx, event(fmt.Sprintf("k%d", i), true, 1000)); err != nil {
			t.Fatal(err)
		}
	}

	s, err := p.Reset(ctx, "learner-1", "item-1", "content changed")
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if s.TotalReviews != 0 || s.EaseFactor != 2.5 || s.CurrentInterval != 1 || s.MasteryLevel != mastery.LevelLearning {
		t.Errorf("reset schedule = %+v, want defaults", s)
	}
	if !s.IsDue(now) {
		t.Error("reset item should be due today")
	}
	if s.Version != 6 {
		t.Errorf("Version = %d, want 6", s.Version)
	}

	resets := repo.Resets()
	if len(resets) != 1 {
		t.Fatalf("resets = %d, want 1", len(resets))
	}
	if resets[0].PriorTotalReviews != 5 || resets[0].Reason != "content changed" || resets[0].ID == "" {
		t.Errorf("reset record = %+v", resets[0])
	}
}
