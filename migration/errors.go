package migration

import "fmt"

// ConfigurationError reports a malformed migration set supplied by the host.
// It is detected before any database I/O.
type ConfigurationError struct {
	Version int64 // offending version, 0 when the problem is not tied to one
	Reason  string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Version != 0 {
		return fmt.Sprintf("invalid migration set: version %d: %s", e.Version, e.Reason)
	}

	return "invalid migration set: " + e.Reason
}

// MigrationError reports that a migration's script or its ledger entry could
// not be committed. The database is left at the last committed version.
type MigrationError struct {
	Version     int64
	Description string
	Op          string // step that failed, e.g. "executing script"
	Err         error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Description, e.Err)
	}

	return fmt.Sprintf("migration %d (%s) failed: %s: %v", e.Version, e.Description, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// DuplicateVersionError reports an attempt to record a version that is
// already present in the ledger.
type DuplicateVersionError struct {
	Version int64
}

// Error implements the error interface.
func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("migration %d is already recorded in the ledger", e.Version)
}
