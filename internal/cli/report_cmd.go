package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/revloop/revloop/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect past run reports",
}

func init() {
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List run reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := report.List()
		if err != nil {
			return fmt.Errorf("listing run reports: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No run reports yet.")
			return nil
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.PR),
				r.Status,
				strconv.Itoa(r.Iterations),
				strconv.Itoa(r.TotalFixed),
				strconv.Itoa(r.TotalSkipped),
				r.FinishedAt,
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("PR", "STATUS", "ITER", "FIXED", "SKIPPED", "FINISHED").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})

		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := report.Load(args[0])
		if err != nil {
			return fmt.Errorf("loading run report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.Body)
		return nil
	},
}
