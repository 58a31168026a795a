package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/config"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Precompute review queues for every learner on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if once {
			return precomputeOnce(ctx, e)
		}

		if e.cfg.PrecomputeSchedule == "" {
			return fmt.Errorf("precompute_schedule is not set; configure it or use --once")
		}
		sched, err := config.ParseSchedule(e.cfg.PrecomputeSchedule)
		if err != nil {
			return fmt.Errorf("precompute_schedule: %w", err)
		}
		e.logger.Info("queue precompute scheduled", "cron", e.cfg.PrecomputeSchedule)

		return runSchedule(ctx, e, sched)
	},
}

func init() {
	daemonCmd.Flags().Bool("once", false, "Precompute all queues once and exit")
}

func runSchedule(ctx context.Context, e *env, sched cron.Schedule) error {
	for {
		now := time.Now()
		next := sched.Next(now)
		wait := next.Sub(now)
		e.logger.Info("next precompute", "at", next.Format("Mon Jan 2 15:04"), "in", wait.Round(time.Minute))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info("daemon stopping")
			return nil
		case <-timer.C:
		}

		if err := precomputeOnce(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
			// Per-learner failures are already logged; keep the schedule running.
			e.logger.Error("precompute run failed", "error", err)
		}
	}
}

func precomputeOnce(ctx context.Context, e *env) error {
	start := time.Now()
	built, err := e.precomputer().RunAll(ctx)
	e.logger.Info("precompute complete", "queues", built, "elapsed", time.Since(start).Round(time.Millisecond))
	return err
}
