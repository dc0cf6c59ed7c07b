package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/embedmigrate/internal/database"
	"github.com/aqasim81/embedmigrate/migration"
)

// errCheckFailed is returned when at least one migration fails its check.
var errCheckFailed = errors.New("migration check failed") //nolint:gochecknoglobals // sentinel error

const checksumPrefixLen = 12

var checkCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "check [migration-dir]",
	Short: "Validate migration files without connecting",
	Long: `Validate the migration set (positive, unique, ascending versions and
non-empty scripts) and check every script against the target dialect. For
PostgreSQL, statements that cannot run inside a transaction, such as
CREATE INDEX CONCURRENTLY, are reported. No database connection is made.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	checkCmd.Flags().String("dialect", "", "target dialect (sqlite, postgres); defaults to the configured database")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := AppConfig.MigrationsDir
	if len(args) > 0 {
		dir = args[0]
	}

	dialect, err := checkDialect(cmd)
	if err != nil {
		return err
	}

	ms, err := loadMigrations(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(ms) == 0 {
		fmt.Fprintln(out, "No migration files found.")
		return nil
	}

	if err := migration.Validate(ms); err != nil {
		return err
	}

	rows, failed := checkRows(ms, dialect)

	if err := renderTable(out, []string{"VERSION", "DESCRIPTION", "CHECKSUM", "RESULT"}, rows); err != nil {
		return err
	}

	if failed > 0 {
		fmt.Fprintf(out, "\n%d of %d migration(s) failed the %s check.\n", failed, len(rows), dialect.Name())
		return errCheckFailed
	}

	fmt.Fprintf(out, "\n%d migration(s) OK for %s.\n", len(rows), dialect.Name())

	return nil
}

// checkDialect picks the dialect from --dialect, then from the configured
// database, falling back to SQLite.
func checkDialect(cmd *cobra.Command) (database.Dialect, error) {
	if name, _ := cmd.Flags().GetString("dialect"); name != "" {
		return database.DialectFor(name)
	}

	if AppConfig.DatabaseURL == "" {
		return database.SQLiteDialect{}, nil
	}

	id, err := database.ParseIdentifier(AppConfig.DatabaseURL)
	if err != nil {
		return nil, err
	}

	return database.DialectFor(string(id.Engine))
}

func checkRows(ms []migration.Migration, dialect database.Dialect) ([][]string, int) {
	var (
		rows   [][]string
		failed int
	)

	for _, m := range migration.UpOnly(ms) {
		result := "ok"
		if err := dialect.CheckScript(m.Script); err != nil {
			result = err.Error()
			failed++
		}

		checksum := m.Checksum
		if len(checksum) > checksumPrefixLen {
			checksum = checksum[:checksumPrefixLen]
		}

		rows = append(rows, []string{fmt.Sprint(m.Version), m.Description, checksum, result})
	}

	return rows, failed
}
