package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <learner-id> <item-id>...",
	Short: "Create default schedules, due today, for new items",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		p := e.processor()
		learnerID := args[0]
		created := 0
		for _, itemID := range args[1:] {
			_, isNew, err := p.Enroll(cmd.Context(), learnerID, itemID)
			if err != nil {
				return fmt.Errorf("enroll %s: %w", itemID, err)
			}
			if isNew {
				created++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enrolled %d new items (%d already scheduled)\n", created, len(args)-1-created)
		return nil
	},
}
