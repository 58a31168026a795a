// Package config holds the immutable tunables shared by every scheduler
// component. A Config is built once at startup and passed by value into
// each constructor; nothing reads configuration from package state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all scheduler tunables.
type Config struct {
	EaseMin     float64 `yaml:"ease_min"`
	EaseMax     float64 `yaml:"ease_max"`
	EaseDefault float64 `yaml:"ease_default"`

	IntervalMin int `yaml:"interval_min"`
	IntervalMax int `yaml:"interval_max"`

	LeechFailureStreak  int     `yaml:"leech_failure_streak"`
	LeechEaseThreshold  float64 `yaml:"leech_ease_threshold"`
	LeechTimeThresholdS int     `yaml:"leech_time_threshold_s"`
	LeechMinAttempts    int     `yaml:"leech_min_attempts"`

	KnownEaseThreshold          float64 `yaml:"known_ease_threshold"`
	MasteryEaseThreshold        float64 `yaml:"mastery_ease_threshold"`
	MasteryConsecutiveThreshold int     `yaml:"mastery_consecutive_threshold"`
	MasteryIntervalThreshold    int     `yaml:"mastery_interval_threshold"`
	PermanentDurationDays       int     `yaml:"permanent_duration_days"`

	// PermanentDemoteOnFailure controls whether a single failure drops a
	// Permanent item back through the tiers.
	PermanentDemoteOnFailure bool `yaml:"permanent_demote_on_failure"`

	MaxDailyReviews    int `yaml:"max_daily_reviews"`
	LeechInterleaveGap int `yaml:"leech_interleave_gap"`

	// HistoryCapacity bounds the per-schedule recent performance buffer.
	HistoryCapacity int `yaml:"history_capacity"`

	// MaxSaveRetries is how many optimistic write attempts a review gets
	// before a conflict is surfaced to the caller.
	MaxSaveRetries int `yaml:"max_save_retries"`

	// QueueTimeBudget is the soft limit for scanning a learner's records
	// while building a queue.
	QueueTimeBudget time.Duration `yaml:"queue_time_budget"`

	// AggregatorBuffer is the number of pending global stat updates held
	// before new ones are dropped.
	AggregatorBuffer int `yaml:"aggregator_buffer"`

	// PrecomputeSchedule is a 5-field cron expression for the daemon's
	// queue precompute job. Empty disables it.
	PrecomputeSchedule    string `yaml:"precompute_schedule"`
	PrecomputeConcurrency int    `yaml:"precompute_concurrency"`

	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config with the standard tunables.
func Default() Config {
	return Config{
		EaseMin:     1.3,
		EaseMax:     3.0,
		EaseDefault: 2.5,

		IntervalMin: 1,
		IntervalMax: 365,

		LeechFailureStreak:  3,
		LeechEaseThreshold:  1.5,
		LeechTimeThresholdS: 900,
		LeechMinAttempts:    5,

		KnownEaseThreshold:          2.5,
		MasteryEaseThreshold:        2.8,
		MasteryConsecutiveThreshold: 5,
		MasteryIntervalThreshold:    180,
		PermanentDurationDays:       730,
		PermanentDemoteOnFailure:    true,

		MaxDailyReviews:    50,
		LeechInterleaveGap: 3,

		HistoryCapacity:  10,
		MaxSaveRetries:   3,
		QueueTimeBudget:  2 * time.Second,
		AggregatorBuffer: 256,

		PrecomputeConcurrency: 4,
		LogLevel:              "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (if it exists),
// and ARS_* environment variables, in increasing priority. The result is
// validated before it is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// A missing config file means defaults.
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ARS_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ARS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ARS_PRECOMPUTE_SCHEDULE"); v != "" {
		cfg.PrecomputeSchedule = v
	}
	if err := envInt(&cfg.MaxDailyReviews, "ARS_MAX_DAILY_REVIEWS"); err != nil {
		return err
	}
	if err := envInt(&cfg.LeechInterleaveGap, "ARS_LEECH_INTERLEAVE_GAP"); err != nil {
		return err
	}
	if v := os.Getenv("ARS_PERMANENT_DEMOTE_ON_FAILURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ARS_PERMANENT_DEMOTE_ON_FAILURE: %w", err)
		}
		cfg.PermanentDemoteOnFailure = b
	}
	return nil
}

func envInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks that the tunables are internally consistent.
func (c Config) Validate() error {
	var errs []error

	if c.EaseMin <= 0 || c.EaseMin > c.EaseMax {
		errs = append(errs, fmt.Errorf("ease bounds [%v, %v] are invalid", c.EaseMin, c.EaseMax))
	}
	if c.EaseDefault < c.EaseMin || c.EaseDefault > c.EaseMax {
		errs = append(errs, fmt.Errorf("ease_default %v is outside [%v, %v]", c.EaseDefault, c.EaseMin, c.EaseMax))
	}
	if c.IntervalMin < 1 || c.IntervalMin > c.IntervalMax {
		errs = append(errs, fmt.Errorf("interval bounds [%d, %d] are invalid", c.IntervalMin, c.IntervalMax))
	}
	if c.LeechFailureStreak < 1 {
		errs = append(errs, fmt.Errorf("leech_failure_streak must be positive, got %d", c.LeechFailureStreak))
	}
	if c.MasteryConsecutiveThreshold < 1 {
		errs = append(errs, fmt.Errorf("mastery_consecutive_threshold must be positive, got %d", c.MasteryConsecutiveThreshold))
	}
	if c.PermanentDurationDays < 0 {
		errs = append(errs, fmt.Errorf("permanent_duration_days must not be negative, got %d", c.PermanentDurationDays))
	}
	if c.MaxDailyReviews < 1 {
		errs = append(errs, fmt.Errorf("max_daily_reviews must be positive, got %d", c.MaxDailyReviews))
	}
	if c.LeechInterleaveGap < 1 {
		errs = append(errs, fmt.Errorf("leech_interleave_gap must be at least 1, got %d", c.LeechInterleaveGap))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity))
	}
	if c.MaxSaveRetries < 1 {
		errs = append(errs, fmt.Errorf("max_save_retries must be positive, got %d", c.MaxSaveRetries))
	}
	if c.QueueTimeBudget <= 0 {
		errs = append(errs, fmt.Errorf("queue_time_budget must be positive, got %s", c.QueueTimeBudget))
	}
	if c.AggregatorBuffer < 1 {
		errs = append(errs, fmt.Errorf("aggregator_buffer must be positive, got %d", c.AggregatorBuffer))
	}
	if c.PrecomputeConcurrency < 1 {
		errs = append(errs, fmt.Errorf("precompute_concurrency must be positive, got %d", c.PrecomputeConcurrency))
	}
	if c.PrecomputeSchedule != "" {
		if _, err := ParseSchedule(c.PrecomputeSchedule); err != nil {
			errs = append(errs, fmt.Errorf("precompute_schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(expr))
}
