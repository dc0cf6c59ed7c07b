// Package runner brings a database schema up to date at application startup.
//
// A host calls Run (or Open, to keep using the connection) once, before any
// other component touches the database, with the database identifier and the
// complete list of migrations. Pending migrations are applied in ascending
// version order, each in its own transaction together with its ledger entry.
// Any failure is returned as a *FatalStartupError and the host should abort.
//
//	//go:embed migrations/*.sql
//	var migrationsFS embed.FS
//
//	ms, err := migration.LoadFS(migrationsFS, "migrations")
//	...
//	db, report, err := runner.Open(ctx, runner.Config{
//		DatabaseIdentifier: "sqlite:app.db",
//		Migrations:         ms,
//	})
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aqasim81/embedmigrate/internal/database"
	"github.com/aqasim81/embedmigrate/internal/executor"
	"github.com/aqasim81/embedmigrate/internal/ledger"
	"github.com/aqasim81/embedmigrate/internal/planner"
	"github.com/aqasim81/embedmigrate/migration"
)

// Run opens the database named by cfg.DatabaseIdentifier, creating SQLite
// files as needed, applies pending migrations and closes it again.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	db, report, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if closeErr := db.Close(); closeErr != nil {
		return nil, fatal(StageClose, closeErr)
	}

	return report, nil
}

// Open is Run without the final close: on success the migrated handle is
// handed to the host, which owns it from then on. On failure the handle is
// closed.
func Open(ctx context.Context, cfg Config) (*sql.DB, *Report, error) {
	if err := validate(&cfg); err != nil {
		return nil, nil, err
	}

	db, dialect, err := database.Open(ctx, cfg.DatabaseIdentifier, database.Options{
		BusyTimeout: cfg.BusyTimeout,
		JournalMode: cfg.JournalMode,
	})
	if err != nil {
		return nil, nil, fatal(StageOpen, err)
	}

	report, err := migrate(ctx, db, dialect, cfg)
	if err != nil {
		return nil, nil, withCloseErr(err, db.Close())
	}

	return db, report, nil
}

// Migrate applies pending migrations using a handle the host already owns.
// dialectName is "sqlite" or "postgres" (driver names are accepted too).
// The handle is left open. cfg.DatabaseIdentifier, BusyTimeout and
// JournalMode are ignored.
func Migrate(ctx context.Context, db *sql.DB, dialectName string, cfg Config) (*Report, error) {
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	dialect, err := database.DialectFor(dialectName)
	if err != nil {
		return nil, fatal(StageOpen, err)
	}

	return migrate(ctx, db, dialect, cfg)
}

// validate checks everything that can be checked without database I/O and
// fills in missing checksums.
func validate(cfg *Config) error {
	if err := ledger.ValidateTableName(tableName(cfg.TableName)); err != nil {
		return fatal(StageValidate, err)
	}

	cfg.Migrations = migration.WithChecksums(cfg.Migrations)

	if err := migration.Validate(cfg.Migrations); err != nil {
		return fatal(StageValidate, err)
	}

	return nil
}

func tableName(name string) string {
	if name == "" {
		return ledger.DefaultTable
	}

	return name
}

func migrate(ctx context.Context, db *sql.DB, dialect database.Dialect, cfg Config) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), DryRun: cfg.DryRun}
	logger := cfg.logger().With("run_id", report.RunID)

	l, err := ledger.New(db, dialect, cfg.TableName)
	if err != nil {
		return nil, fatal(StageValidate, err)
	}

	applied, entries, err := readLedger(ctx, l, cfg.DryRun)
	if err != nil {
		return nil, fatal(StageLedger, err)
	}

	for i := range cfg.Migrations {
		if m := &cfg.Migrations[i]; m.Direction == migration.Down {
			logger.DebugContext(ctx, "ignoring down migration", "version", m.Version, "description", m.Description)
		}
	}

	pending, err := planner.Plan(cfg.Migrations, applied)
	if err != nil {
		return nil, fatal(StagePlan, err)
	}

	report.Pending = migration.Versions(pending)

	div := planner.Diverge(cfg.Migrations, applied)
	report.Unknown = div.Unknown
	report.OutOfOrder = div.OutOfOrder
	report.Modified = modified(cfg.Migrations, entries)

	if len(div.Unknown) > 0 {
		logger.WarnContext(ctx, "ledger records versions missing from the migration set",
			"versions", div.Unknown)
	}

	if len(report.Modified) > 0 {
		logger.WarnContext(ctx, "applied migrations have changed since they ran", "versions", report.Modified)
	}

	if len(div.OutOfOrder) > 0 {
		if cfg.DisallowOutOfOrder {
			return nil, fatal(StagePlan, &migration.ConfigurationError{
				Version: div.OutOfOrder[0],
				Reason:  fmt.Sprintf("pending migration is older than applied version %d", div.Highest),
			})
		}

		logger.WarnContext(ctx, "applying migrations older than the latest applied version",
			"versions", div.OutOfOrder)
	}

	exec := executor.New(db, l,
		executor.WithDryRun(cfg.DryRun),
		executor.WithProgressCallback(cfg.OnProgress),
		executor.WithClock(cfg.clock()),
		executor.WithPreflight(dialect.CheckScript),
		executor.WithLogger(logger),
	)

	n, err := exec.Apply(ctx, pending)
	if err != nil {
		return nil, fatal(StageApply, err)
	}

	report.Applied = migration.Versions(pending[:n])

	if n > 0 {
		if entries, err = l.Entries(ctx); err != nil {
			return nil, fatal(StageLedger, err)
		}
	}

	report.Entries = toReportEntries(entries)
	report.Current = currentVersion(entries)

	switch {
	case cfg.DryRun:
		logger.InfoContext(ctx, "dry run complete", "pending", len(pending), "current", report.Current)
	case n == 0:
		logger.InfoContext(ctx, "schema is up to date", "current", report.Current)
	default:
		logger.InfoContext(ctx, "applied migrations", "count", n, "current", report.Current)
	}

	return report, nil
}

// readLedger returns the applied version set and the full entries. In dry
// run mode a missing ledger table is treated as empty instead of created.
func readLedger(ctx context.Context, l *ledger.Ledger, dryRun bool) (map[int64]struct{}, []ledger.Entry, error) {
	if dryRun {
		exists, err := l.Exists(ctx)
		if err != nil {
			return nil, nil, err
		}

		if !exists {
			return map[int64]struct{}{}, nil, nil
		}
	} else if err := l.EnsureTable(ctx); err != nil {
		return nil, nil, err
	}

	applied, err := l.AppliedVersions(ctx)
	if err != nil {
		return nil, nil, err
	}

	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, nil, err
	}

	return applied, entries, nil
}

// modified returns the versions whose recorded checksum differs from the
// current script.
func modified(ms []migration.Migration, entries []ledger.Entry) []int64 {
	recorded := make(map[int64]string, len(entries))
	for _, e := range entries {
		recorded[e.Version] = e.Checksum
	}

	var out []int64

	for i := range ms {
		m := &ms[i]
		if m.Direction != migration.Up {
			continue
		}

		if sum, ok := recorded[m.Version]; ok && sum != "" && sum != m.Checksum {
			out = append(out, m.Version)
		}
	}

	return out
}

func toReportEntries(entries []ledger.Entry) []LedgerEntry {
	out := make([]LedgerEntry, len(entries))
	for i, e := range entries {
		out[i] = LedgerEntry{
			Version:     e.Version,
			Description: e.Description,
			Checksum:    e.Checksum,
			AppliedAt:   e.AppliedAt,
			Duration:    time.Duration(e.DurationMs) * time.Millisecond,
		}
	}

	return out
}

func currentVersion(entries []ledger.Entry) int64 {
	var current int64
	for _, e := range entries {
		current = max(current, e.Version)
	}

	return current
}
