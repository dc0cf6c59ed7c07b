package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	sqliteDriver = "sqlite"

	// DefaultBusyTimeout is how long SQLite waits on a locked database file.
	DefaultBusyTimeout = 5 * time.Second

	dirPerm = 0o750
)

// Options tunes the connection opened by Open.
type Options struct {
	// BusyTimeout sets the SQLite busy_timeout pragma. Zero means
	// DefaultBusyTimeout.
	BusyTimeout time.Duration
	// JournalMode sets the SQLite journal_mode pragma, e.g. "WAL". Empty
	// keeps the engine default.
	JournalMode string
}

// Open parses the identifier, opens the database it names and verifies the
// connection. SQLite files and their parent directories are created when
// missing. The returned handle is limited to a single connection.
func Open(ctx context.Context, identifier string, opts Options) (*sql.DB, Dialect, error) {
	id, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, nil, err
	}

	var (
		db      *sql.DB
		dialect Dialect
	)

	switch id.Engine {
	case SQLite:
		db, err = openSQLite(id, opts)
		dialect = SQLiteDialect{}
	case Postgres:
		db, err = openPostgres(id)
		dialect = PostgresDialect{}
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, id.Engine)
	}

	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return db, dialect, nil
}

func openSQLite(id Identifier, opts Options) (*sql.DB, error) {
	if id.Path != "" {
		if dir := filepath.Dir(id.Path); dir != "." {
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(sqliteDriver, sqliteDSN(id.DSN, opts))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Closing the last connection of an in-memory database discards it.
	if id.InMemory() {
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
	}

	return db, nil
}

// sqliteDSN appends the pragmas applied to every new connection.
func sqliteDSN(dsn string, opts Options) string {
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}

	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", timeout.Milliseconds()),
	}

	if opts.JournalMode != "" {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=journal_mode(%s)", strings.ToUpper(opts.JournalMode)))
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + strings.Join(pragmas, "&")
}

func openPostgres(id Identifier) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(id.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentifier, err)
	}

	return stdlib.OpenDB(*cfg), nil
}
