package ledger

import (
	"fmt"
	"regexp"
)

// DefaultTable is the ledger table used when none is configured.
const DefaultTable = "schema_migrations"

// maxTableNameLen is PostgreSQL's identifier limit, the stricter of the two engines.
const maxTableNameLen = 63

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`) //nolint:gochecknoglobals // compiled once

// createTableTemplate is the ledger DDL. %[1]s is the table name and %[2]s
// the dialect's integer type.
const createTableTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
    version      %[2]s PRIMARY KEY,
    description  TEXT NOT NULL,
    checksum     TEXT NOT NULL,
    applied_at   TEXT NOT NULL,
    duration_ms  %[2]s NOT NULL
)`

// ValidateTableName checks that name can be spliced into SQL unquoted.
func ValidateTableName(name string) error {
	if len(name) > maxTableNameLen || !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}

	return nil
}
