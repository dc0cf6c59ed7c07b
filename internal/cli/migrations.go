package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/embedmigrate/internal/config"
	"github.com/aqasim81/embedmigrate/migration"
	"github.com/aqasim81/embedmigrate/runner"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, MIGRATE_DATABASE_URL, or database_url in config)",
)

func loadMigrations(dir string) ([]migration.Migration, error) {
	ms, err := migration.LoadFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	return ms, nil
}

// runnerConfig maps the CLI configuration onto the library's.
func runnerConfig(cfg *config.Config, ms []migration.Migration) runner.Config {
	return runner.Config{
		DatabaseIdentifier: cfg.DatabaseURL,
		Migrations:         ms,
		Logger:             appLogger,
		TableName:          cfg.TableName,
		DisallowOutOfOrder: cfg.DisallowOutOfOrder,
		BusyTimeout:        cfg.BusyTimeout,
		JournalMode:        cfg.JournalMode,
	}
}

// inspect plans against the configured database without changing it.
func inspect(cmd *cobra.Command) ([]migration.Migration, *runner.Report, error) {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return nil, nil, errDatabaseURLRequired
	}

	ms, err := loadMigrations(cfg.MigrationsDir)
	if err != nil {
		return nil, nil, err
	}

	rc := runnerConfig(cfg, ms)
	rc.DryRun = true

	report, err := runner.Run(commandContext(cmd), rc)
	if err != nil {
		return nil, nil, err
	}

	return ms, report, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
