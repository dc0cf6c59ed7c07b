package runner

import (
	"log/slog"
	"time"

	"github.com/aqasim81/embedmigrate/internal/executor"
	"github.com/aqasim81/embedmigrate/migration"
)

// ProgressEvent is reported for each pending migration as it is processed.
type ProgressEvent = executor.ProgressEvent

// Progress statuses carried by ProgressEvent.Status.
const (
	StatusStarting  = executor.StatusStarting
	StatusCompleted = executor.StatusCompleted
	StatusFailed    = executor.StatusFailed
	StatusSkipped   = executor.StatusSkipped
)

// Config enumerates everything a host passes to the runner. Only
// DatabaseIdentifier and Migrations are required.
type Config struct {
	// DatabaseIdentifier names the database, e.g. "sqlite:app.db",
	// "/var/lib/app/app.db" or "postgres://...". Ignored by Migrate.
	DatabaseIdentifier string

	// Migrations is the full migration set, ascending by version. Down
	// migrations may be included and are never executed.
	Migrations []migration.Migration

	// Logger receives progress and divergence warnings. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// TableName is the ledger table. Defaults to "schema_migrations".
	TableName string

	// DisallowOutOfOrder fails the run when a pending migration has a
	// lower version than one already applied.
	DisallowOutOfOrder bool

	// Clock stamps ledger entries. Defaults to time.Now.
	Clock func() time.Time

	// OnProgress is called before and after each pending migration.
	OnProgress func(ProgressEvent)

	// BusyTimeout and JournalMode tune SQLite connections opened by Run
	// and Open.
	BusyTimeout time.Duration
	JournalMode string

	// DryRun plans without executing anything or creating the ledger table.
	DryRun bool
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.Default()
}

func (c *Config) clock() func() time.Time {
	if c.Clock != nil {
		return c.Clock
	}

	return time.Now
}
