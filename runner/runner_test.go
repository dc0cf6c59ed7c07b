package runner_test

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/embedmigrate/internal/database"
	"github.com/aqasim81/embedmigrate/migration"
	"github.com/aqasim81/embedmigrate/runner"
)

func dbPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "app.db")
}

func quietConfig(identifier string, ms ...migration.Migration) runner.Config {
	return runner.Config{
		DatabaseIdentifier: identifier,
		Migrations:         ms,
		Logger:             slog.New(slog.DiscardHandler),
	}
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, _, err := database.Open(context.Background(), path, database.Options{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func ledgerVersions(t *testing.T, db *sql.DB) []int64 {
	t.Helper()

	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
	require.NoError(t, err)

	defer rows.Close()

	versions := []int64{}

	for rows.Next() {
		var v int64
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}

	require.NoError(t, rows.Err())

	return versions
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n))

	return n > 0
}

func columnExists(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n))

	return n > 0
}

func requireStage(t *testing.T, err error, stage runner.Stage) *runner.FatalStartupError {
	t.Helper()

	var fatal *runner.FatalStartupError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, stage, fatal.Stage)

	return fatal
}

func TestRun_emptyLedger_appliesFirstMigration(t *testing.T) {
	t.Parallel()

	path := dbPath(t)

	report, err := runner.Run(context.Background(), quietConfig("sqlite:"+path,
		migration.New(1, "create_table", "CREATE TABLE t(id)"),
	))

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.Pending)
	assert.Equal(t, []int64{1}, report.Applied)
	assert.Equal(t, int64(1), report.Current)
	assert.True(t, report.UpToDate())
	assert.NotEmpty(t, report.RunID)

	db := openDB(t, path)
	assert.Equal(t, []int64{1}, ledgerVersions(t, db))
	assert.True(t, tableExists(t, db, "t"))
}

func TestRun_appliesOnlyNewMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := dbPath(t)
	first := migration.New(1, "create_table", "CREATE TABLE t(id); INSERT INTO t(id) VALUES (1);")

	_, err := runner.Run(ctx, quietConfig(path, first))
	require.NoError(t, err)

	report, err := runner.Run(ctx, quietConfig(path,
		first,
		migration.New(2, "add_col", "ALTER TABLE t ADD COLUMN x"),
	))

	require.NoError(t, err)
	assert.Equal(t, []int64{2}, report.Applied)

	db := openDB(t, path)
	assert.Equal(t, []int64{1, 2}, ledgerVersions(t, db))
	assert.True(t, columnExists(t, db, "t", "x"))

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM t").Scan(&rows))
	assert.Equal(t, 1, rows, "migration 1 ran once")
}

func TestRun_secondRunIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := quietConfig(dbPath(t),
		migration.New(1, "a", "CREATE TABLE a (id INTEGER)"),
		migration.New(2, "b", "CREATE TABLE b (id INTEGER)"),
	)

	_, err := runner.Run(ctx, cfg)
	require.NoError(t, err)

	report, err := runner.Run(ctx, cfg)

	require.NoError(t, err)
	assert.Empty(t, report.Pending)
	assert.Empty(t, report.Applied)
	assert.Equal(t, int64(2), report.Current)
	assert.Len(t, report.Entries, 2)
}

func TestRun_failingMigration_leavesEarlierOnesCommitted(t *testing.T) {
	t.Parallel()

	path := dbPath(t)

	_, err := runner.Run(context.Background(), quietConfig(path,
		migration.New(1, "a", "CREATE TABLE a (id INTEGER)"),
		migration.New(2, "b", "CREATE TABLE b (id INTEGER)"),
		migration.New(3, "broken", "CREATE TABLE c (id INTEGER); INSERT INTO nope VALUES (1);"),
		migration.New(4, "d", "CREATE TABLE d (id INTEGER)"),
	))

	fatal := requireStage(t, err, runner.StageApply)

	var migErr *migration.MigrationError
	require.ErrorAs(t, fatal, &migErr)
	assert.Equal(t, int64(3), migErr.Version)
	assert.Equal(t, "broken", migErr.Description)

	db := openDB(t, path)
	assert.Equal(t, []int64{1, 2}, ledgerVersions(t, db))
	assert.False(t, tableExists(t, db, "c"))
	assert.False(t, tableExists(t, db, "d"))
}

func TestRun_sqliteTransactionControl_rejectedBeforeAnyScript(t *testing.T) {
	t.Parallel()

	path := dbPath(t)

	_, err := runner.Run(context.Background(), quietConfig(path,
		migration.New(1, "a", "CREATE TABLE a (id INTEGER)"),
		migration.New(2, "partial", "CREATE TABLE p (id INTEGER); COMMIT; INSERT INTO nope VALUES (1);"),
	))

	fatal := requireStage(t, err, runner.StageApply)

	var cfgErr *migration.ConfigurationError
	require.ErrorAs(t, fatal, &cfgErr)
	assert.Equal(t, int64(2), cfgErr.Version)
	assert.Contains(t, cfgErr.Reason, "statement 2 is COMMIT")

	db := openDB(t, path)
	assert.False(t, tableExists(t, db, "a"))
	assert.False(t, tableExists(t, db, "p"))
	assert.Empty(t, ledgerVersions(t, db))
}

func TestRun_appliesSparseVersionsInOrder(t *testing.T) {
	t.Parallel()

	var order []int64

	cfg := quietConfig(dbPath(t),
		migration.New(1, "a", "CREATE TABLE a (id INTEGER)"),
		migration.New(2, "b", "CREATE TABLE b (id INTEGER)"),
		migration.New(5, "c", "CREATE TABLE c (id INTEGER)"),
	)
	cfg.OnProgress = func(ev runner.ProgressEvent) {
		if ev.Status == runner.StatusStarting {
			order = append(order, ev.Migration.Version)
		}
	}

	report, err := runner.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5}, order)
	assert.Equal(t, []int64{1, 2, 5}, report.Applied)
}

func TestRun_ledgerAheadOfCode_succeedsAndReports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := dbPath(t)

	var ms []migration.Migration
	for v := int64(1); v <= 7; v++ {
		ms = append(ms, migration.New(v, "m", "SELECT 1"))
	}

	_, err := runner.Run(ctx, quietConfig(path, ms...))
	require.NoError(t, err)

	var logs bytes.Buffer

	cfg := quietConfig(path, ms[:5]...)
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	report, err := runner.Run(ctx, cfg)

	require.NoError(t, err)
	assert.Empty(t, report.Pending)
	assert.Equal(t, []int64{6, 7}, report.Unknown)
	assert.Equal(t, int64(7), report.Current)
	assert.Contains(t, logs.String(), "ledger records versions missing from the migration set")
	assert.Contains(t, logs.String(), "run_id="+report.RunID)
}

func TestRun_outOfOrderMigration(t *testing.T) {
	t.Parallel()

	one := migration.New(1, "a", "CREATE TABLE a (id INTEGER)")
	two := migration.New(2, "b", "CREATE TABLE b (id INTEGER)")
	three := migration.New(3, "c", "CREATE TABLE c (id INTEGER)")

	t.Run("applied with a warning by default", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		path := dbPath(t)

		_, err := runner.Run(ctx, quietConfig(path, one, three))
		require.NoError(t, err)

		report, err := runner.Run(ctx, quietConfig(path, one, two, three))

		require.NoError(t, err)
		assert.Equal(t, []int64{2}, report.OutOfOrder)
		assert.Equal(t, []int64{2}, report.Applied)
	})

	t.Run("rejected before execution when disallowed", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		path := dbPath(t)

		_, err := runner.Run(ctx, quietConfig(path, one, three))
		require.NoError(t, err)

		cfg := quietConfig(path, one, two, three)
		cfg.DisallowOutOfOrder = true

		_, err = runner.Run(ctx, cfg)

		fatal := requireStage(t, err, runner.StagePlan)

		var cfgErr *migration.ConfigurationError
		require.ErrorAs(t, fatal, &cfgErr)
		assert.Equal(t, int64(2), cfgErr.Version)
		assert.Contains(t, cfgErr.Reason, "older than applied version 3")

		db := openDB(t, path)
		assert.False(t, tableExists(t, db, "b"))
		assert.Equal(t, []int64{1, 3}, ledgerVersions(t, db))
	})
}

func TestRun_outOfOrderBaselineIgnoresUnknownVersions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := dbPath(t)

	one := migration.New(1, "a", "CREATE TABLE a (id INTEGER)")
	two := migration.New(2, "b", "CREATE TABLE b (id INTEGER)")
	three := migration.New(3, "c", "CREATE TABLE c (id INTEGER)")
	nine := migration.New(9, "z", "CREATE TABLE z (id INTEGER)")

	_, err := runner.Run(ctx, quietConfig(path, one, three, nine))
	require.NoError(t, err)

	cfg := quietConfig(path, one, two, three)
	cfg.DisallowOutOfOrder = true

	_, err = runner.Run(ctx, cfg)

	fatal := requireStage(t, err, runner.StagePlan)
	assert.Contains(t, fatal.Error(), "pending migration is older than applied version 3")
	assert.NotContains(t, fatal.Error(), "version 9")
}

func TestRun_changedScript_isReportedAsModified(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := dbPath(t)

	_, err := runner.Run(ctx, quietConfig(path, migration.New(1, "a", "CREATE TABLE a (id INTEGER)")))
	require.NoError(t, err)

	report, err := runner.Run(ctx, quietConfig(path, migration.New(1, "a", "CREATE TABLE a (id INTEGER, name TEXT)")))

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.Modified)
	assert.Empty(t, report.Applied)
}

func TestRun_invalidMigrationSet_failsBeforeDatabaseIO(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ms   []migration.Migration
	}{
		{
			name: "duplicate versions",
			ms:   []migration.Migration{migration.New(1, "a", "SELECT 1"), migration.New(1, "b", "SELECT 2")},
		},
		{
			name: "unsorted versions",
			ms:   []migration.Migration{migration.New(2, "b", "SELECT 1"), migration.New(1, "a", "SELECT 2")},
		},
		{
			name: "empty script",
			ms:   []migration.Migration{migration.New(1, "a", "")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := dbPath(t)

			_, err := runner.Run(context.Background(), quietConfig(path, tt.ms...))

			fatal := requireStage(t, err, runner.StageValidate)

			var cfgErr *migration.ConfigurationError
			require.ErrorAs(t, fatal, &cfgErr)

			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr), "database file must not be created")
		})
	}
}

func TestRun_invalidTableName_failsValidation(t *testing.T) {
	t.Parallel()

	cfg := quietConfig(dbPath(t), migration.New(1, "a", "SELECT 1"))
	cfg.TableName = "bad name"

	_, err := runner.Run(context.Background(), cfg)

	requireStage(t, err, runner.StageValidate)
}

func TestRun_unsupportedScheme_failsOpening(t *testing.T) {
	t.Parallel()

	_, err := runner.Run(context.Background(), quietConfig("mysql://localhost/app", migration.New(1, "a", "SELECT 1")))

	fatal := requireStage(t, err, runner.StageOpen)
	assert.ErrorIs(t, fatal, database.ErrUnsupportedScheme)
}

func TestRun_downMigrationsAreNeverExecuted(t *testing.T) {
	t.Parallel()

	path := dbPath(t)

	report, err := runner.Run(context.Background(), quietConfig(path,
		migration.New(1, "create_users", "CREATE TABLE users (id INTEGER)"),
		migration.Migration{Version: 1, Description: "create_users", Script: "DROP TABLE users", Direction: migration.Down},
	))

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.Applied)
	assert.True(t, tableExists(t, openDB(t, path), "users"))
}

func TestRun_dryRun_changesNothing(t *testing.T) {
	t.Parallel()

	path := dbPath(t)

	var events []runner.ProgressEvent

	cfg := quietConfig(path,
		migration.New(1, "a", "CREATE TABLE a (id INTEGER)"),
		migration.New(2, "b", "CREATE TABLE b (id INTEGER)"),
	)
	cfg.DryRun = true
	cfg.OnProgress = func(ev runner.ProgressEvent) { events = append(events, ev) }

	report, err := runner.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, []int64{1, 2}, report.Pending)
	assert.Empty(t, report.Applied)
	assert.False(t, report.UpToDate())
	require.Len(t, events, 2)
	assert.Equal(t, runner.StatusSkipped, events[0].Status)

	db := openDB(t, path)
	assert.False(t, tableExists(t, db, "schema_migrations"))
	assert.False(t, tableExists(t, db, "a"))
}

func TestRun_customTableNameAndClock(t *testing.T) {
	t.Parallel()

	path := dbPath(t)
	stamp := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	cfg := quietConfig(path, migration.New(1, "a", "SELECT 1"))
	cfg.TableName = "app_versions"
	cfg.Clock = func() time.Time { return stamp }

	report, err := runner.Run(context.Background(), cfg)

	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.True(t, stamp.Equal(report.Entries[0].AppliedAt))
	assert.Equal(t, "a", report.Entries[0].Description)

	db := openDB(t, path)
	assert.True(t, tableExists(t, db, "app_versions"))
	assert.False(t, tableExists(t, db, "schema_migrations"))
}

func TestOpen_handsMigratedHandleToHost(t *testing.T) {
	t.Parallel()

	db, report, err := runner.Open(context.Background(), quietConfig(":memory:",
		migration.New(1, "create_table", "CREATE TABLE t(id)"),
	))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, []int64{1}, report.Applied)

	_, err = db.Exec("INSERT INTO t(id) VALUES (1)")
	assert.NoError(t, err, "in-memory schema survives the handoff")
}

func TestMigrate_borrowedHandleStaysOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t, dbPath(t))

	report, err := runner.Migrate(ctx, db, "sqlite", quietConfig("",
		migration.New(1, "create_table", "CREATE TABLE t(id)"),
	))

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.Applied)
	require.NoError(t, db.PingContext(ctx))
	assert.True(t, tableExists(t, db, "t"))
}

func TestMigrate_unknownDialect(t *testing.T) {
	t.Parallel()

	_, err := runner.Migrate(context.Background(), nil, "oracle", quietConfig(""))

	fatal := requireStage(t, err, runner.StageOpen)
	assert.ErrorIs(t, fatal, database.ErrUnknownDialect)
}

func TestFatalStartupError_message(t *testing.T) {
	t.Parallel()

	err := &runner.FatalStartupError{
		Stage: runner.StageApply,
		Err:   &migration.MigrationError{Version: 3, Description: "x", Err: assert.AnError},
	}

	assert.True(t, strings.HasPrefix(err.Error(), "schema migration failed while applying migrations: migration 3 (x)"))
}
