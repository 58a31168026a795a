package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/config"
	"github.com/abhisek/ars/internal/difficulty"
	"github.com/abhisek/ars/internal/queue"
	"github.com/abhisek/ars/internal/review"
	"github.com/abhisek/ars/internal/store"
)

// env bundles what a command needs: config, logger and an open store.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	agg    *difficulty.Aggregator
}

// openEnv loads config (file, env, then flags), sets up logging and opens
// the store. Callers must Close the env.
func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("store opened", "path", dbPath)

	return &env{cfg: cfg, logger: logger, store: st}, nil
}

// processor returns a review processor wired to the global stats aggregator.
func (e *env) processor() *review.Processor {
	if e.agg == nil {
		e.agg = difficulty.NewAggregator(e.cfg, e.store.ItemStats(), e.logger)
	}
	return review.NewProcessor(e.cfg, e.store.Schedules(), e.agg, e.logger)
}

func (e *env) builder() *queue.Builder {
	return queue.NewBuilder(e.cfg, e.store.Schedules(), e.logger)
}

func (e *env) precomputer() *queue.Precomputer {
	return queue.NewPrecomputer(e.builder(), e.store.Schedules(), e.store.Queues(), e.cfg.PrecomputeConcurrency, e.logger)
}

// Close drains pending stat updates before closing the store.
func (e *env) Close() {
	if e.agg != nil {
		e.agg.Close()
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close store", "error", err)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ars", "config.yaml")
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the config file or ARS_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
