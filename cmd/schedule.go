package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/store"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <learner-id> <item-id>",
	Short: "Show the review schedule for one learner and item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.processor().Get(cmd.Context(), args[0], args[1])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no schedule for %s/%s", args[0], args[1])
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		printSchedule(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().Bool("json", false, "Print the schedule as JSON")
}
