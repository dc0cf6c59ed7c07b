// Package parser inspects PostgreSQL migration scripts using the PostgreSQL
// parser itself, via pg_query.
package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Script is a parsed migration script.
type Script struct {
	Stmts []*pg_query.RawStmt
	// SQL is the trimmed source the statement locations refer to.
	SQL string
}

// Parse parses a PostgreSQL script. Empty or whitespace-only input yields a
// Script with no statements.
func Parse(sql string) (*Script, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &Script{}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSQL, err)
	}

	return &Script{Stmts: tree.Stmts, SQL: trimmed}, nil
}

// Text returns the source of statement i without its terminating semicolon.
func (s *Script) Text(i int) string {
	stmt := s.Stmts[i]

	start := int(stmt.GetStmtLocation())
	end := len(s.SQL)

	if n := int(stmt.GetStmtLen()); n > 0 {
		end = start + n
	}

	return strings.TrimSpace(s.SQL[start:end])
}
