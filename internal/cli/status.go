package cli

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/embedmigrate/migration"
	"github.com/aqasim81/embedmigrate/runner"
)

// Status labels shown by the status command.
const (
	stateApplied  = "applied"
	statePending  = "pending"
	stateModified = "modified"
	stateUnknown  = "unknown"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display every migration with its state: applied, pending, modified
(applied, but the file changed since) or unknown (recorded in the ledger but
missing from the migrations directory). The database is not modified.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ms, report, err := inspect(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if err := renderTable(out, []string{"VERSION", "DESCRIPTION", "STATE", "APPLIED AT"}, statusRows(ms, report)); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nCurrent version: %d, %d pending.\n", report.Current, len(report.Pending))

	return nil
}

// statusRows merges the migration files with the ledger, ordered by version.
func statusRows(ms []migration.Migration, report *runner.Report) [][]string {
	type row struct {
		version int64
		cells   []string
	}

	entries := make(map[int64]runner.LedgerEntry, len(report.Entries))
	for _, e := range report.Entries {
		entries[e.Version] = e
	}

	var rows []row

	for i := range ms {
		m := &ms[i]
		if m.Direction != migration.Up {
			continue
		}

		state, appliedAt := statePending, ""

		if e, ok := entries[m.Version]; ok {
			state, appliedAt = stateApplied, e.AppliedAt.Format(time.RFC3339)
			if slices.Contains(report.Modified, m.Version) {
				state = stateModified
			}

			delete(entries, m.Version)
		}

		rows = append(rows, row{m.Version, []string{strconv.FormatInt(m.Version, 10), m.Description, state, appliedAt}})
	}

	for _, e := range entries {
		rows = append(rows, row{e.Version, []string{
			strconv.FormatInt(e.Version, 10), e.Description, stateUnknown, e.AppliedAt.Format(time.RFC3339),
		}})
	}

	slices.SortFunc(rows, func(a, b row) int { return cmp.Compare(a.version, b.version) })

	cells := make([][]string, len(rows))
	for i := range rows {
		cells[i] = rows[i].cells
	}

	return cells
}
