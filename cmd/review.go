package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/review"
	"github.com/abhisek/ars/internal/spacedrep"
	"github.com/abhisek/ars/internal/ui/theme"
)

var reviewCmd = &cobra.Command{
	Use:   "review <learner-id> <item-id>",
	Short: "Apply one review outcome to a schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		correct, _ := cmd.Flags().GetBool("correct")
		rt, _ := cmd.Flags().GetInt64("response-ms")
		changed, _ := cmd.Flags().GetBool("changed")
		key, _ := cmd.Flags().GetString("key")
		if key == "" {
			key = uuid.NewString()
		}
		var reviewedAt *time.Time
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			reviewedAt = &t
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.processor().Process(cmd.Context(), review.Event{
			LearnerID:      args[0],
			ItemID:         args[1],
			IsCorrect:      correct,
			ResponseTimeMs: rt,
			ChangedAnswer:  changed,
			IdempotencyKey: key,
			ReviewedAt:     reviewedAt,
		})
		if err != nil {
			return err
		}

		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	reviewCmd.Flags().Bool("correct", false, "The answer was correct")
	reviewCmd.Flags().Int64("response-ms", 0, "Response time in milliseconds")
	reviewCmd.Flags().Bool("changed", false, "The learner changed their answer before submitting")
	reviewCmd.Flags().String("key", "", "Idempotency key (default: random)")
	reviewCmd.Flags().String("at", "", "When the review happened, RFC 3339 (default: now)")
	reviewCmd.MarkFlagRequired("response-ms")
}

func printResult(w io.Writer, res *review.Result) {
	s := res.Schedule
	if res.Replayed {
		fmt.Fprintln(w, theme.Hint.Render("already applied; showing stored schedule"))
	} else {
		fmt.Fprintln(w, theme.Field("performance", res.Performance))
	}
	printSchedule(w, s)
	if res.Transition != nil {
		fmt.Fprintf(w, "%s %s -> %s\n", theme.Title.Render("mastery"),
			theme.Level(res.Transition.From), theme.Level(res.Transition.To))
	}
	if res.LeechTriggered {
		fmt.Fprintln(w, theme.Bad.Render("flagged as leech"))
	}
}

func printSchedule(w io.Writer, s *spacedrep.ReviewSchedule) {
	fmt.Fprintln(w, theme.Title.Render(s.LearnerID+" / "+s.ItemID))
	fmt.Fprintln(w, theme.Field("next review", spacedrep.DateString(s.NextReviewDate)))
	fmt.Fprintln(w, theme.Field("interval (days)", s.CurrentInterval))
	fmt.Fprintln(w, theme.Field("ease", fmt.Sprintf("%.2f", s.EaseFactor)))
	fmt.Fprintln(w, theme.Field("streak", s.ConsecutiveCorrect))
	fmt.Fprintln(w, theme.Field("reviews", fmt.Sprintf("%d (%d correct)", s.TotalReviews, s.TotalCorrect)))
	fmt.Fprintln(w, theme.Field("difficulty", fmt.Sprintf("%.3f", s.DifficultyScore)))
	fmt.Fprintln(w, theme.Field("mastery", theme.Level(s.MasteryLevel)))
	leech := "no"
	if s.IsLeech {
		leech = theme.Bad.Render("yes")
	}
	fmt.Fprintln(w, theme.Field("leech", fmt.Sprintf("%s (flagged %d times)", leech, s.LeechCount)))
}
