package database

import "errors"

// ErrInvalidIdentifier indicates the database identifier could not be parsed.
var ErrInvalidIdentifier = errors.New("invalid database identifier")

// ErrUnsupportedScheme indicates the identifier names an engine this package cannot open.
var ErrUnsupportedScheme = errors.New("unsupported database scheme")

// ErrConnectionFailed indicates a connection to the database could not be established.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrUnknownDialect indicates a dialect name that has no implementation.
var ErrUnknownDialect = errors.New("unknown database dialect")
