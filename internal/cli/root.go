// Package cli wires the revloop commands.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/revloop/revloop/internal/config"
	"github.com/revloop/revloop/internal/logging"
)

var (
	verbose   bool
	appConfig *config.Config

	rootCmd = &cobra.Command{
		Use:   "revloop",
		Short: "Automate the review-fix-resolve cycle on pull request threads",
		Long: `Revloop fetches open review threads on a pull request, classifies
each comment by severity, commits and pushes the fixes produced by your
change-producing agent, replies with the commit reference, and resolves
the threads, looping until the review is clean or needs a human.`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose)

		cfg, err := config.Load()
		if err != nil {
			slog.Warn("failed to load config, using defaults", "error", err)
			def := config.DefaultConfig()
			cfg = &def
		}
		appConfig = cfg
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
