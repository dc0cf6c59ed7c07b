package cli

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aqasim81/embedmigrate/migration"
	"github.com/aqasim81/embedmigrate/runner"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan",
	Short: "Show execution plan for pending migrations",
	Long: `Display the pending migrations in the order apply would run them,
flagging any that are older than an already applied version.`,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	ms, report, err := inspect(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(report.Pending) == 0 {
		fmt.Fprintf(out, "Nothing to apply, schema is at version %d.\n", report.Current)
		return nil
	}

	if err := renderTable(out, []string{"#", "VERSION", "DESCRIPTION", "FILE", "NOTE"}, planRows(ms, report)); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d migration(s) pending.\n", len(report.Pending))

	return nil
}

func planRows(ms []migration.Migration, report *runner.Report) [][]string {
	byVersion := make(map[int64]*migration.Migration, len(ms))

	for i := range ms {
		if ms[i].Direction == migration.Up {
			byVersion[ms[i].Version] = &ms[i]
		}
	}

	rows := make([][]string, 0, len(report.Pending))

	for i, v := range report.Pending {
		var description, file string
		if m, ok := byVersion[v]; ok {
			description, file = m.Description, m.FilePath
		}

		note := ""
		if slices.Contains(report.OutOfOrder, v) {
			note = "out of order"
		}

		rows = append(rows, []string{strconv.Itoa(i + 1), strconv.FormatInt(v, 10), description, file, note})
	}

	return rows
}
