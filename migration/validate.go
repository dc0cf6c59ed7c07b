package migration

import (
	"fmt"
	"strings"
)

// Validate checks that the Up migrations of ms, in the order given, have
// strictly positive and strictly increasing versions and a non-empty script.
// Gaps between versions are allowed. Down migrations are only checked for a
// positive version, since they are never executed.
func Validate(ms []Migration) error {
	var prev int64

	for i := range ms {
		m := &ms[i]

		if m.Direction != Up && m.Direction != Down {
			return &ConfigurationError{Version: m.Version, Reason: fmt.Sprintf("unknown %s", m.Direction)}
		}

		if m.Version <= 0 {
			return &ConfigurationError{
				Reason: fmt.Sprintf("migration %q has non-positive version %d", m.Description, m.Version),
			}
		}

		if m.Direction == Down {
			continue
		}

		if strings.TrimSpace(m.Script) == "" {
			return &ConfigurationError{Version: m.Version, Reason: "script is empty"}
		}

		switch {
		case m.Version == prev:
			return &ConfigurationError{Version: m.Version, Reason: "duplicate version"}
		case m.Version < prev:
			return &ConfigurationError{
				Version: m.Version,
				Reason:  fmt.Sprintf("out of order: listed after version %d", prev),
			}
		}

		prev = m.Version
	}

	return nil
}

// UpOnly returns the Up migrations of ms, preserving their order.
func UpOnly(ms []Migration) []Migration {
	up := make([]Migration, 0, len(ms))

	for i := range ms {
		if ms[i].Direction == Up {
			up = append(up, ms[i])
		}
	}

	return up
}

// Versions returns the versions of ms in order.
func Versions(ms []Migration) []int64 {
	vs := make([]int64, len(ms))
	for i := range ms {
		vs[i] = ms[i].Version
	}

	return vs
}
