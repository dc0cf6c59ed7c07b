// Package cli implements the migrate command-line tool on top of the runner.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"

	"github.com/aqasim81/embedmigrate/internal/config"
	"github.com/aqasim81/embedmigrate/internal/logging"
)

var version = semver.Version{Minor: 1, Build: semver.Commit()} //nolint:gochecknoglobals // build metadata

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// appLogger is built from AppConfig.LogLevel during PersistentPreRunE.
var appLogger = slog.New(slog.DiscardHandler) //nolint:gochecknoglobals // standard Cobra pattern for shared config

// colorLogs enables ANSI colours in log output, set by Execute.
var colorLogs bool //nolint:gochecknoglobals // set once from main

// rootCmd is the base command for the migrate CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "migrate",
	Version: version.String(),
	Short:   "Embedded schema migration runner",
	Long: `migrate applies versioned SQL migration files to a SQLite database file
or a PostgreSQL database, one transaction per migration, and records every
applied version in a ledger table so it never runs twice.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.PersistentFlags().String("config", "migrate.yml", "path to configuration file")
	rootCmd.PersistentFlags().String("database-url", "", "database identifier (sqlite:app.db, app.db, postgres://...)")
	rootCmd.PersistentFlags().String("migrations-dir", "", "path to migration files")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

// Execute runs the root command with the given output streams. Called from main.
func Execute(stdout, stderr io.Writer, color bool) {
	colorLogs = color

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := config.MergeEnv(cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	mergeFlags(cmd, cfg)

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	AppConfig = cfg
	appLogger = logging.New(cmd.ErrOrStderr(), level, colorLogs)

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
	}

	if cmd.Flags().Changed("migrations-dir") {
		cfg.MigrationsDir, _ = cmd.Flags().GetString("migrations-dir")
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
}
