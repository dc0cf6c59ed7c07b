// Package migration defines the migration records a host application supplies
// to the runner, along with validation of a migration set and loading of
// migration files from disk or an embedded filesystem.
package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Direction tells whether a migration moves the schema forward or backward.
// Only Up migrations are ever executed.
type Direction int

// Supported migration directions.
const (
	Up Direction = iota
	Down
)

// String returns the lower-case name of the direction.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Migration is an immutable description of one versioned schema change.
type Migration struct {
	Version     int64     // strictly positive, unique among Up migrations of a set
	Description string    // "create_users", informational only
	Script      string    // one or more SQL statements
	Direction   Direction // Up or Down
	Checksum    string    // SHA-256 hex digest of Script
	FilePath    string    // source file, empty for migrations defined in code
}

// New returns an Up migration with its checksum computed.
func New(version int64, description, script string) Migration {
	return Migration{
		Version:     version,
		Description: description,
		Script:      script,
		Direction:   Up,
		Checksum:    ComputeChecksum(script),
	}
}

// String returns the "{version}_{description}" form used in logs and output.
func (m Migration) String() string {
	return fmt.Sprintf("%d_%s", m.Version, m.Description)
}

// ComputeChecksum returns the SHA-256 hex digest of the given SQL script.
func ComputeChecksum(script string) string {
	h := sha256.Sum256([]byte(script))

	return hex.EncodeToString(h[:])
}

// WithChecksums returns a copy of ms where every empty Checksum is filled in.
// The input slice is not modified.
func WithChecksums(ms []Migration) []Migration {
	out := make([]Migration, len(ms))
	copy(out, ms)

	for i := range out {
		if out[i].Checksum == "" {
			out[i].Checksum = ComputeChecksum(out[i].Script)
		}
	}

	return out
}
