package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/revloop/revloop/internal/classify"
	"github.com/revloop/revloop/internal/gitops"
	"github.com/revloop/revloop/internal/loop"
	"github.com/revloop/revloop/internal/provider"
	"github.com/revloop/revloop/internal/provider/github"
	"github.com/revloop/revloop/internal/report"
)

var (
	runOwner         string
	runRepo          string
	runPR            int
	runMaxIterations int
	runReviewWait    time.Duration
	runDryRun        bool
	runScope         string
	runWorkdir       string
	runFixLabel      string
)

var runCmd = &cobra.Command{
	Use:   "run [pr-url]",
	Short: "Run the review-fix-resolve loop against a pull request",
	Long: `Run the orchestration loop: fetch open review threads, classify them,
publish local fixes, reply with the commit reference, and resolve the
threads. The loop repeats until the review is clean, the remaining
threads need a human, or the iteration budget runs out.

The pull request can be given as a URL argument or via --owner,
--repo, and --pr. The loop operates on the local clone in --workdir
(default: current directory); it stages, commits, and pushes whatever
changes it finds there, so the change-producing agent must have acted
before (or between) iterations.`,
	Example: `  revloop run https://github.com/org/repo/pull/42
  revloop run --owner org --repo repo --pr 42 --dry-run
  revloop run --owner org --repo repo --pr 42 --scope bugs --max-iterations 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend := github.NewBackend(runOwner, runRepo, appConfig.GitHub.Token)

		identifier := ""
		switch {
		case len(args) == 1:
			identifier = args[0]
		case runOwner != "" && runRepo != "" && runPR > 0:
			identifier = fmt.Sprintf("%s/%s#%d", runOwner, runRepo, runPR)
		default:
			return fmt.Errorf("specify a PR URL or --owner, --repo, and --pr")
		}

		prInfo, err := backend.GetPR(ctx, identifier)
		if err != nil {
			return fmt.Errorf("fetching PR: %w", err)
		}
		if prInfo.Status != "active" {
			return fmt.Errorf("PR #%d is %s; nothing to do", prInfo.Number, prInfo.Status)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Reviewing PR #%d: %s\n", prInfo.Number, prInfo.Title)

		scope, err := classify.ParseScope(scopeOrConfig())
		if err != nil {
			return err
		}

		classifier := classify.NewBotAware(appConfig.GitHub.Bots...)
		tree := gitops.NewTree(runWorkdir)

		opts := loop.Options{
			MaxIterations: maxIterationsOrConfig(),
			ReviewWait:    reviewWaitOrConfig(),
			DryRun:        runDryRun,
			Scope:         scope,
			FixLabel:      fixLabelOrConfig(),
		}

		orch := loop.New(backend, tree, classifier, nil, opts)
		result := orch.Run(ctx, prInfo)

		printSummary(cmd, prInfo, result)

		rep := report.NewRun(prInfo.Owner, prInfo.Repo, prInfo.Number, runDryRun, result)
		if err := report.Save(rep); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Warning: failed to save run report: %v\n", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Run report saved: %s\n", rep.ID)
		}

		if result.Status == loop.StatusFailed {
			return fmt.Errorf("run failed: %w", result.Err)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runOwner, "owner", "", "Repository owner")
	runCmd.Flags().StringVar(&runRepo, "repo", "", "Repository name")
	runCmd.Flags().IntVar(&runPR, "pr", 0, "Pull request number")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "Maximum loop iterations (default 5)")
	runCmd.Flags().DurationVar(&runReviewWait, "review-wait", 0, "Wait between iterations for reviewers to react (default 90s)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Classify and report without committing, replying, or resolving")
	runCmd.Flags().StringVar(&runScope, "scope", "", "Auto-fix scope: all | bugs (default all)")
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "", "Local clone directory (default: current directory)")
	runCmd.Flags().StringVar(&runFixLabel, "fix-label", "", "Commit message label for publish commits")
}

// Flag values win over config; config fills the rest.

func maxIterationsOrConfig() int {
	if runMaxIterations > 0 {
		return runMaxIterations
	}
	return appConfig.Loop.MaxIterations
}

func scopeOrConfig() string {
	if runScope != "" {
		return runScope
	}
	return appConfig.Loop.Scope
}

func reviewWaitOrConfig() time.Duration {
	if runReviewWait > 0 {
		return runReviewWait
	}
	return appConfig.Loop.ParseReviewWait()
}

func fixLabelOrConfig() string {
	if runFixLabel != "" {
		return runFixLabel
	}
	return appConfig.Loop.FixLabel
}

// printSummary renders the final RunResult as a table.
func printSummary(cmd *cobra.Command, pr *provider.PRInfo, result *loop.RunResult) {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	refs := "-"
	if len(result.PublishRefs) > 0 {
		refs = fmt.Sprint(result.PublishRefs)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PR", "STATUS", "ITERATIONS", "FIXED", "SKIPPED", "REMAINING", "COMMITS").
		Rows([][]string{{
			strconv.Itoa(pr.Number),
			result.Status.String(),
			strconv.Itoa(result.Iterations),
			strconv.Itoa(result.TotalFixed),
			strconv.Itoa(result.TotalSkipped),
			strconv.Itoa(result.Remaining),
			refs,
		}}...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	fmt.Fprintln(cmd.OutOrStdout(), t)
}
