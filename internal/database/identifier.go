package database

import (
	"fmt"
	"strings"
)

// Engine names a supported database engine.
type Engine string

// Supported engines.
const (
	SQLite   Engine = "sqlite"
	Postgres Engine = "postgres"
)

const memoryPath = ":memory:"

// Identifier is a parsed database identifier.
type Identifier struct {
	Engine Engine
	// DSN is what gets handed to the driver.
	DSN string
	// Path is the database file for SQLite, empty for in-memory and server
	// engines.
	Path string
}

// InMemory reports whether the identifier names a SQLite in-memory database.
func (id Identifier) InMemory() bool {
	return id.Engine == SQLite && id.Path == ""
}

// ParseIdentifier parses the forms a host may supply:
//
//	sqlite:app.db, sqlite://app.db       SQLite file
//	file:app.db?cache=shared             SQLite URI, passed through
//	app.db, /var/lib/app/app.db          bare SQLite path
//	:memory:, sqlite::memory:            SQLite in-memory
//	postgres://..., postgresql://...     PostgreSQL
func ParseIdentifier(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}

	switch {
	case strings.HasPrefix(s, "postgres://"), strings.HasPrefix(s, "postgresql://"):
		return Identifier{Engine: Postgres, DSN: s}, nil
	case strings.HasPrefix(s, "sqlite://"):
		return sqliteIdentifier(strings.TrimPrefix(s, "sqlite://"))
	case strings.HasPrefix(s, "sqlite:"):
		return sqliteIdentifier(strings.TrimPrefix(s, "sqlite:"))
	case strings.HasPrefix(s, "file:"):
		return fileURIIdentifier(s)
	case strings.Contains(s, "://"):
		scheme, _, _ := strings.Cut(s, "://")
		return Identifier{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	default:
		return sqliteIdentifier(s)
	}
}

func sqliteIdentifier(p string) (Identifier, error) {
	if p == "" {
		return Identifier{}, fmt.Errorf("%w: missing SQLite path", ErrInvalidIdentifier)
	}

	if p == memoryPath {
		return Identifier{Engine: SQLite, DSN: memoryPath}, nil
	}

	return Identifier{Engine: SQLite, DSN: p, Path: p}, nil
}

func fileURIIdentifier(uri string) (Identifier, error) {
	p, query, _ := strings.Cut(strings.TrimPrefix(uri, "file:"), "?")
	if p == "" {
		return Identifier{}, fmt.Errorf("%w: missing SQLite path in %q", ErrInvalidIdentifier, uri)
	}

	if p == memoryPath || strings.Contains(query, "mode=memory") {
		return Identifier{Engine: SQLite, DSN: uri}, nil
	}

	return Identifier{Engine: SQLite, DSN: uri, Path: p}, nil
}
