package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/revloop/revloop/internal/classify"
)

var classifyAuthor string

var classifyCmd = &cobra.Command{
	Use:   "classify <comment-body>",
	Short: "Classify a review comment body",
	Long: `Run the severity classifier on a comment body and print the label.

Useful for checking how a specific comment would be routed before
running the loop. With --author, bot-badge rules apply when the author
is a configured automated reviewer.`,
	Example: `  revloop classify "This breaks the login flow"
  revloop classify --author "coderabbitai[bot]" "🔴 P1: possible nil dereference"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier := classify.NewBotAware(appConfig.GitHub.Bots...)
		sev := classifier.Classify(classifyAuthor, args[0])

		fmt.Fprintln(cmd.OutOrStdout(), sev.String())
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyAuthor, "author", "", "Comment author login")
}
