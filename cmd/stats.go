package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/mastery"
	"github.com/abhisek/ars/internal/store"
	"github.com/abhisek/ars/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats <learner-id>",
	Short: "Show a learner's review statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := store.Summarize(cmd.Context(), e.store.Schedules(), args[0], time.Now())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, theme.Title.Render("Statistics for "+args[0]))
		if sum.Total == 0 {
			fmt.Fprintln(w, "No scheduled items.")
			return nil
		}
		fmt.Fprintln(w, theme.Field("items", sum.Total))
		for _, l := range mastery.Levels {
			fmt.Fprintln(w, theme.Field("  "+string(l), sum.ByLevel[l]))
		}
		fmt.Fprintln(w, theme.Field("leeches", sum.Leeches))
		fmt.Fprintln(w, theme.Field("due today", sum.DueToday))
		fmt.Fprintln(w, theme.Field("overdue", sum.Overdue))
		fmt.Fprintln(w, theme.Field("average ease", fmt.Sprintf("%.2f", sum.AverageEase)))
		fmt.Fprintln(w, theme.Field("accuracy", fmt.Sprintf("%.0f%% of %d reviews", sum.Accuracy()*100, sum.TotalReviews)))
		fmt.Fprintln(w, theme.Field("time spent", (time.Duration(sum.TotalTimeSpentMs)*time.Millisecond).Round(time.Second)))
		return nil
	},
}

var itemStatsCmd = &cobra.Command{
	Use:   "item-stats <item-id>",
	Short: "Show cross-learner statistics for an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		gs, err := e.store.ItemStats().ItemStats(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, theme.Title.Render("Item "+args[0]))
		if gs.TotalReviews == 0 {
			fmt.Fprintln(w, "No reviews recorded.")
			return nil
		}
		fmt.Fprintln(w, theme.Field("reviews", fmt.Sprintf("%d (%d correct)", gs.TotalReviews, gs.TotalCorrect)))
		fmt.Fprintln(w, theme.Field("error rate", fmt.Sprintf("%.1f%%", gs.GlobalErrorRate*100)))
		fmt.Fprintln(w, theme.Field("average ease", fmt.Sprintf("%.2f", gs.AverageEaseFactor)))
		fmt.Fprintln(w, theme.Field("average response", fmt.Sprintf("%.0fms", gs.AverageResponseTimeMs)))
		fmt.Fprintln(w, theme.Field("updated", gs.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
		return nil
	},
}
