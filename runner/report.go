package runner

import "time"

// Report describes the outcome of a successful run.
type Report struct {
	RunID string
	// DryRun is set when nothing was executed.
	DryRun bool
	// Pending lists the versions that were pending when the run started.
	Pending []int64
	// Applied lists the versions applied by this run, in order.
	Applied []int64
	// Unknown lists recorded versions that have no migration in the set.
	Unknown []int64
	// OutOfOrder lists pending versions lower than an applied version.
	OutOfOrder []int64
	// Modified lists applied versions whose script changed since.
	Modified []int64
	// Current is the highest recorded version after the run, 0 if none.
	Current int64
	// Entries is the ledger after the run, ordered by version.
	Entries []LedgerEntry
}

// LedgerEntry is one recorded migration.
type LedgerEntry struct {
	Version     int64
	Description string
	Checksum    string
	AppliedAt   time.Time
	Duration    time.Duration
}

// UpToDate reports whether nothing is left to apply.
func (r *Report) UpToDate() bool {
	return len(r.Pending) == len(r.Applied)
}
