// Package ledger manages the bookkeeping table that records which migration
// versions have been applied to a database.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aqasim81/embedmigrate/internal/database"
	"github.com/aqasim81/embedmigrate/migration"
)

// Entry is one row of the ledger table.
type Entry struct {
	Version     int64
	Description string
	Checksum    string
	AppliedAt   time.Time
	DurationMs  int64
}

// RecordParams contains the fields needed to record a migration as applied.
type RecordParams struct {
	Version     int64
	Description string
	Checksum    string
	AppliedAt   time.Time
	DurationMs  int64
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Ledger reads and writes the ledger table of one database.
type Ledger struct {
	db      *sql.DB
	dialect database.Dialect
	table   string
}

// New creates a Ledger for table in db. An empty table name selects
// DefaultTable.
func New(db *sql.DB, dialect database.Dialect, table string) (*Ledger, error) {
	if table == "" {
		table = DefaultTable
	}

	if err := ValidateTableName(table); err != nil {
		return nil, err
	}

	return &Ledger{db: db, dialect: dialect, table: table}, nil
}

// Table returns the ledger table name.
func (l *Ledger) Table() string {
	return l.table
}

// EnsureTable creates the ledger table if it does not exist.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(createTableTemplate, l.table, l.dialect.IntegerType())

	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w %s: %w", ErrTableCreation, l.table, err)
	}

	return nil
}

// Exists reports whether the ledger table is present, without creating it.
func (l *Ledger) Exists(ctx context.Context) (bool, error) {
	var n int

	if err := l.db.QueryRowContext(ctx, l.dialect.TableExistsQuery(), l.table).Scan(&n); err != nil {
		return false, fmt.Errorf("checking for ledger table %s: %w", l.table, err)
	}

	return n > 0, nil
}

// AppliedVersions returns the set of recorded versions.
func (l *Ledger) AppliedVersions(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT version FROM "+l.table)
	if err != nil {
		return nil, fmt.Errorf("querying applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]struct{})

	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning applied version: %w", err)
		}

		applied[v] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading applied versions: %w", err)
	}

	return applied, nil
}

// Entries returns every ledger row ordered by version.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT version, description, checksum, applied_at, duration_ms FROM `+l.table+` ORDER BY version`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e         Entry
			appliedAt string
		)

		if err := rows.Scan(&e.Version, &e.Description, &e.Checksum, &appliedAt, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}

		e.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing applied_at of version %d: %w", e.Version, err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger entries: %w", err)
	}

	return entries, nil
}

// RecordApplied inserts the ledger row for p.Version through q, normally the
// transaction that ran the migration's script. A version that is already
// recorded yields *migration.DuplicateVersionError.
func (l *Ledger) RecordApplied(ctx context.Context, q Execer, p RecordParams) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (version, description, checksum, applied_at, duration_ms) VALUES (%s, %s, %s, %s, %s)`,
		l.table,
		l.dialect.Placeholder(1), l.dialect.Placeholder(2), l.dialect.Placeholder(3),
		l.dialect.Placeholder(4), l.dialect.Placeholder(5),
	)

	_, err := q.ExecContext(ctx, query,
		p.Version, p.Description, p.Checksum, p.AppliedAt.UTC().Format(time.RFC3339Nano), p.DurationMs,
	)
	if err != nil {
		if l.dialect.IsDuplicateKey(err) {
			return &migration.DuplicateVersionError{Version: p.Version}
		}

		return fmt.Errorf("recording migration %d as applied: %w", p.Version, err)
	}

	return nil
}

// VersionSet builds the set form used by the planner from a list of versions.
func VersionSet(versions ...int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(versions))
	for _, v := range versions {
		set[v] = struct{}{}
	}

	return set
}
