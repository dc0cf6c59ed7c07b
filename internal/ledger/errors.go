package ledger

import "errors"

// ErrTableCreation indicates the ledger table could not be created.
var ErrTableCreation = errors.New("creating ledger table")

// ErrInvalidTableName indicates a ledger table name that is not a plain SQL
// identifier.
var ErrInvalidTableName = errors.New("invalid ledger table name")
