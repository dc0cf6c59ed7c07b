package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/embedmigrate/internal/config"
	"github.com/aqasim81/embedmigrate/runner"
)

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations in ascending version order. Each migration and
its ledger entry are committed in one transaction; the first failure stops
the run and leaves the database at the last committed version.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	applyCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	ms, err := loadMigrations(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	if len(ms) == 0 {
		fmt.Fprintln(out, "No migration files found.")
		return nil
	}

	fmt.Fprintf(out, "Migrating %s\n", config.RedactIdentifier(cfg.DatabaseURL))

	if dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	rc := runnerConfig(cfg, ms)
	rc.DryRun = dryRun
	rc.OnProgress = progressPrinter(out)

	report, err := runner.Run(commandContext(cmd), rc)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied, current version %d.\n",
			len(report.Pending), report.Current)
	} else {
		fmt.Fprintf(out, "\nApply complete: %d applied, current version %d.\n",
			len(report.Applied), report.Current)
	}

	return nil
}

func progressPrinter(out io.Writer) func(runner.ProgressEvent) {
	return func(event runner.ProgressEvent) {
		switch event.Status {
		case runner.StatusStarting:
			fmt.Fprintf(out, "  Applying %s ... ", event.Migration)
		case runner.StatusCompleted:
			fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
		case runner.StatusSkipped:
			fmt.Fprintf(out, "  Would apply %s\n", event.Migration)
		case runner.StatusFailed:
			fmt.Fprintf(out, "FAILED\n")
			fmt.Fprintf(out, "    Error: %v\n", event.Error)
		}
	}
}
