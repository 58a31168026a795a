package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset <learner-id> <item-id>",
	Short: "Reset a schedule to defaults, keeping an audit record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.processor().Reset(cmd.Context(), args[0], args[1], reason)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no schedule for %s/%s", args[0], args[1])
		}
		if err != nil {
			return err
		}
		printSchedule(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	resetCmd.Flags().String("reason", "manual", "Why the schedule is being reset")
}
