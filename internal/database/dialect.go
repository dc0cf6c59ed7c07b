package database

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/aqasim81/embedmigrate/internal/parser"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Dialect captures the per-engine SQL differences the ledger and executor
// depend on.
type Dialect interface {
	// Name returns the engine the dialect speaks for.
	Name() Engine
	// Placeholder returns the bind parameter for the n-th argument, 1-based.
	Placeholder(n int) string
	// IntegerType is the column type used for 64-bit integers.
	IntegerType() string
	// TableExistsQuery returns a query taking the table name as its only
	// argument and yielding a single count.
	TableExistsQuery() string
	// IsDuplicateKey reports whether err is a primary key or unique
	// constraint violation.
	IsDuplicateKey(err error) bool
	// CheckScript rejects scripts that cannot run inside a transaction.
	CheckScript(script string) error
}

// DialectFor returns the dialect registered under name. Driver names are
// accepted as aliases.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case string(SQLite), "sqlite3":
		return SQLiteDialect{}, nil
	case string(Postgres), "postgresql", "pgx":
		return PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

// Name implements Dialect.
func (SQLiteDialect) Name() Engine { return SQLite }

// Placeholder implements Dialect.
func (SQLiteDialect) Placeholder(int) string { return "?" }

// IntegerType implements Dialect.
func (SQLiteDialect) IntegerType() string { return "INTEGER" }

// TableExistsQuery implements Dialect.
func (SQLiteDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
}

// IsDuplicateKey implements Dialect.
func (SQLiteDialect) IsDuplicateKey(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}

// CheckScript implements Dialect. It rejects BEGIN, COMMIT, END and
// ROLLBACK, which would end the migration's transaction part way through.
// VACUUM is left to fail at execution, where SQLite reports it clearly.
func (SQLiteDialect) CheckScript(script string) error {
	if n, what := sqliteTxControl(script); n > 0 {
		return fmt.Errorf("%w: statement %d is %s", parser.ErrNotTransactional, n, what)
	}

	return nil
}

// PostgresDialect implements Dialect for PostgreSQL.
type PostgresDialect struct{}

// Name implements Dialect.
func (PostgresDialect) Name() Engine { return Postgres }

// Placeholder implements Dialect.
func (PostgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// IntegerType implements Dialect.
func (PostgresDialect) IntegerType() string { return "BIGINT" }

// TableExistsQuery implements Dialect.
func (PostgresDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1`
}

// IsDuplicateKey implements Dialect.
func (PostgresDialect) IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CheckScript implements Dialect. Scripts the parser cannot read are let
// through so the server reports the syntax error against the migration.
func (PostgresDialect) CheckScript(script string) error {
	err := parser.CheckTransactional(script)
	if errors.Is(err, parser.ErrInvalidSQL) {
		return nil
	}

	return err
}
