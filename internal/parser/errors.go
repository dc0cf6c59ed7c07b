package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import "errors"

// ErrInvalidSQL indicates the input could not be parsed as PostgreSQL.
var ErrInvalidSQL = errors.New("invalid SQL")

// ErrNotTransactional indicates a statement that PostgreSQL refuses to run
// inside a transaction block, or one that would end the enclosing transaction.
var ErrNotTransactional = errors.New("statement cannot run inside a migration transaction")
