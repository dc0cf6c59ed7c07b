package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// CheckTransactional parses sql and returns ErrNotTransactional if any
// statement cannot be part of a migration's transaction: CREATE/DROP INDEX
// CONCURRENTLY, VACUUM, CREATE/DROP DATABASE, ALTER SYSTEM, and explicit
// transaction control (BEGIN, COMMIT, ROLLBACK, SAVEPOINT).
// Parse failures are returned wrapped in ErrInvalidSQL.
func CheckTransactional(sql string) error {
	result, err := Parse(sql)
	if err != nil {
		return err
	}

	for i, stmt := range result.Stmts {
		if what := nonTransactional(stmt.Stmt); what != "" {
			return fmt.Errorf("%w: statement %d is %s: %s", ErrNotTransactional, i+1, what, abbreviate(result.Text(i)))
		}
	}

	return nil
}

const maxExcerpt = 60

// abbreviate collapses whitespace and shortens text for error messages.
func abbreviate(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= maxExcerpt {
		return text
	}

	return text[:maxExcerpt] + "..."
}

// nonTransactional returns a description of node when it cannot run inside
// a transaction block, or "" when it can.
func nonTransactional(node *pg_query.Node) string {
	if node == nil {
		return ""
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_IndexStmt:
		if n.IndexStmt != nil && n.IndexStmt.Concurrent {
			return "CREATE INDEX CONCURRENTLY"
		}
	case *pg_query.Node_DropStmt:
		if n.DropStmt != nil && n.DropStmt.Concurrent {
			return "DROP INDEX CONCURRENTLY"
		}
	case *pg_query.Node_VacuumStmt:
		if n.VacuumStmt != nil && n.VacuumStmt.IsVacuumcmd {
			return "VACUUM"
		}
	case *pg_query.Node_CreatedbStmt:
		return "CREATE DATABASE"
	case *pg_query.Node_DropdbStmt:
		return "DROP DATABASE"
	case *pg_query.Node_AlterSystemStmt:
		return "ALTER SYSTEM"
	case *pg_query.Node_TransactionStmt:
		return "transaction control"
	}

	return ""
}
