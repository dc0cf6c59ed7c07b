// Package executor applies pending migrations, each in its own transaction
// together with its ledger entry.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aqasim81/embedmigrate/internal/ledger"
	"github.com/aqasim81/embedmigrate/migration"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Steps named in MigrationError.Op.
const (
	OpCheck   = "checking script"
	OpBegin   = "starting transaction"
	OpExecute = "executing script"
	OpRecord  = "recording ledger entry"
	OpCommit  = "committing"
)

// ProgressEvent is emitted by the executor for each migration processed.
type ProgressEvent struct {
	Migration *migration.Migration
	Status    string
	Duration  time.Duration
	Error     error
}

// Ledger records applied migrations inside the caller's transaction.
type Ledger interface {
	RecordApplied(ctx context.Context, q ledger.Execer, p ledger.RecordParams) error
}

// sqlExecFunc executes a single migration's script inside tx.
type sqlExecFunc func(ctx context.Context, tx *sql.Tx, m *migration.Migration) error

// Executor applies pending migrations strictly in order, one transaction
// per migration, stopping at the first failure.
type Executor struct {
	db         *sql.DB
	ledger     Ledger
	dryRun     bool
	onProgress func(ProgressEvent)
	now        func() time.Time
	preflight  func(script string) error
	logger     *slog.Logger
	execSQL    sqlExecFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithDryRun enables dry-run mode where no SQL is executed. Preflight checks
// still run.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithClock sets the source of ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithPreflight sets a check run over every pending script before the first
// one executes.
func WithPreflight(check func(script string) error) Option {
	return func(e *Executor) { e.preflight = check }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor with the given database, ledger, and options.
func New(db *sql.DB, l Ledger, opts ...Option) *Executor {
	e := &Executor{
		db:     db,
		ledger: l,
	}

	for _, opt := range opts {
		opt(e)
	}

	// Set defaults for injectable functions after options are applied,
	// so tests can override them via options.
	if e.now == nil {
		e.now = time.Now
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	if e.execSQL == nil {
		e.execSQL = executeScript
	}

	return e
}

// Apply executes pending in order and returns how many migrations were
// committed. pending must hold Up migrations with strictly ascending
// versions, as returned by the planner; anything else is rejected with a
// *migration.ConfigurationError before touching the database. The first
// failure stops the run and is returned as a *migration.MigrationError.
func (e *Executor) Apply(ctx context.Context, pending []migration.Migration) (int, error) {
	if err := checkPending(pending); err != nil {
		return 0, err
	}

	if err := e.runPreflight(pending); err != nil {
		return 0, err
	}

	for i := range pending {
		m := &pending[i]

		if e.dryRun {
			e.fireProgress(ProgressEvent{Migration: m, Status: StatusSkipped})
			continue
		}

		if err := e.applyOne(ctx, m); err != nil {
			return i, err
		}
	}

	if e.dryRun {
		return 0, nil
	}

	return len(pending), nil
}

func checkPending(pending []migration.Migration) error {
	for i := range pending {
		if pending[i].Direction != migration.Up {
			return &migration.ConfigurationError{
				Version: pending[i].Version,
				Reason:  "only up migrations can be applied",
			}
		}
	}

	return migration.Validate(pending)
}

func (e *Executor) runPreflight(pending []migration.Migration) error {
	if e.preflight == nil {
		return nil
	}

	for i := range pending {
		if err := e.preflight(pending[i].Script); err != nil {
			return &migration.ConfigurationError{Version: pending[i].Version, Reason: err.Error()}
		}
	}

	return nil
}

// applyOne runs the script and the ledger insert in one transaction and
// fires progress events around it.
func (e *Executor) applyOne(ctx context.Context, m *migration.Migration) error {
	e.fireProgress(ProgressEvent{Migration: m, Status: StatusStarting})
	e.logger.DebugContext(ctx, "applying migration", "version", m.Version, "description", m.Description)

	op := OpBegin
	start := time.Now()

	err := ExecInTransaction(ctx, e.db, func(tx *sql.Tx) error {
		op = OpExecute

		if err := e.execSQL(ctx, tx, m); err != nil {
			return err
		}

		op = OpRecord

		if err := e.ledger.RecordApplied(ctx, tx, ledger.RecordParams{
			Version:     m.Version,
			Description: m.Description,
			Checksum:    checksumOf(m),
			AppliedAt:   e.now(),
			DurationMs:  time.Since(start).Milliseconds(),
		}); err != nil {
			return err
		}

		op = OpCommit

		return nil
	})

	duration := time.Since(start)

	if err != nil {
		e.fireProgress(ProgressEvent{
			Migration: m,
			Status:    StatusFailed,
			Duration:  duration,
			Error:     err,
		})

		return &migration.MigrationError{
			Version:     m.Version,
			Description: m.Description,
			Op:          op,
			Err:         err,
		}
	}

	e.logger.InfoContext(ctx, "applied migration",
		"version", m.Version,
		"description", m.Description,
		"duration", duration,
	)

	e.fireProgress(ProgressEvent{
		Migration: m,
		Status:    StatusCompleted,
		Duration:  duration,
	})

	return nil
}

// executeScript hands the whole script to the driver in one call. Both
// supported drivers execute multi-statement text natively.
func executeScript(ctx context.Context, tx *sql.Tx, m *migration.Migration) error {
	if _, err := tx.ExecContext(ctx, m.Script); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	return nil
}

func checksumOf(m *migration.Migration) string {
	if m.Checksum != "" {
		return m.Checksum
	}

	return migration.ComputeChecksum(m.Script)
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
