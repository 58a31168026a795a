package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "ars",
	Short:         "Adaptive review scheduler",
	Long:          "ars decides when each learner should next see each item, tracks difficulty, leeches and mastery, and builds daily review queues.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ARS_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (default $XDG_CONFIG_HOME/ars/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(itemStatsCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}
