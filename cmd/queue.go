package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/queue"
	"github.com/abhisek/ars/internal/store"
	"github.com/abhisek/ars/internal/ui/theme"
)

var queueCmd = &cobra.Command{
	Use:   "queue <learner-id>",
	Short: "Build today's review queue for a learner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxReviews, _ := cmd.Flags().GetInt("max")
		cached, _ := cmd.Flags().GetBool("cached")
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		var q *queue.Queue
		if cached {
			snap, err := e.store.Queues().LatestQueue(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no precomputed queue for %s; run without --cached or start the daemon", args[0])
			}
			if err != nil {
				return err
			}
			q = queue.FromSnapshot(snap)
		} else {
			q, err = e.builder().Build(cmd.Context(), args[0], maxReviews)
			if err != nil {
				return err
			}
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(q)
		}
		printQueue(cmd.OutOrStdout(), q)
		return nil
	},
}

func init() {
	queueCmd.Flags().Int("max", 0, "Queue capacity (default max_daily_reviews)")
	queueCmd.Flags().Bool("cached", false, "Show the latest precomputed queue instead of building one")
	queueCmd.Flags().Bool("json", false, "Print the queue as JSON")
}

func printQueue(w io.Writer, q *queue.Queue) {
	fmt.Fprintf(w, "%s  %s\n", theme.Title.Render("Review queue for "+q.LearnerID),
		theme.Hint.Render(q.GeneratedAt.Format("2006-01-02 15:04 MST")))
	if len(q.Entries) == 0 {
		fmt.Fprintln(w, "Nothing due.")
		return
	}
	for i, entry := range q.Entries {
		fmt.Fprintf(w, "%3d  %-40s  %s\n", i+1, entry.ItemID, theme.Reason(string(entry.Reason)))
	}
	if len(q.Deferred) > 0 {
		fmt.Fprintln(w, theme.Hint.Render(fmt.Sprintf("%d leech items deferred to keep leeches apart", len(q.Deferred))))
	}
	if q.Partial {
		fmt.Fprintln(w, theme.Hint.Render("partial queue: scan stopped at its time budget"))
	}
}
