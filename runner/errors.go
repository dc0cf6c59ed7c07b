package runner

import (
	"errors"
	"fmt"
)

// Stage names the step of a run that failed.
type Stage string

// Stages of a run, in execution order.
const (
	StageValidate Stage = "validating migrations"
	StageOpen     Stage = "opening database"
	StageLedger   Stage = "reading ledger"
	StagePlan     Stage = "planning migrations"
	StageApply    Stage = "applying migrations"
	StageClose    Stage = "closing database"
)

// FatalStartupError is the single error type returned by Run, Open and
// Migrate. The host is expected to abort its startup when it sees one.
// Err is a *migration.ConfigurationError, *migration.MigrationError,
// *migration.DuplicateVersionError or a database error.
type FatalStartupError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *FatalStartupError) Error() string {
	return fmt.Sprintf("schema migration failed while %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FatalStartupError) Unwrap() error {
	return e.Err
}

func fatal(stage Stage, err error) error {
	return &FatalStartupError{Stage: stage, Err: err}
}

// withCloseErr folds a failure to close the database into err, which stays
// a *FatalStartupError.
func withCloseErr(err, closeErr error) error {
	if closeErr == nil {
		return err
	}

	closeErr = fmt.Errorf("closing database: %w", closeErr)

	if fe, ok := err.(*FatalStartupError); ok { //nolint:errorlint // migrate returns it unwrapped
		return &FatalStartupError{Stage: fe.Stage, Err: errors.Join(fe.Err, closeErr)}
	}

	return fatal(StageClose, errors.Join(err, closeErr))
}
