// Package planner decides which migrations still have to run against a
// database, given the versions its ledger already records.
package planner

import (
	"slices"

	"github.com/aqasim81/embedmigrate/migration"
)

// Divergence describes where the ledger and the supplied migration set
// disagree in ways that do not stop a run.
type Divergence struct {
	// Unknown lists recorded versions with no Up migration in the set, i.e.
	// the database was migrated by newer code.
	Unknown []int64
	// OutOfOrder lists pending versions lower than Highest.
	OutOfOrder []int64
	// Highest is the highest recorded version that is in the set, 0 if none.
	Highest int64
}

// Empty reports whether nothing diverged.
func (d Divergence) Empty() bool {
	return len(d.Unknown) == 0 && len(d.OutOfOrder) == 0
}

// Plan returns the Up migrations of all whose version is not in applied, in
// the order given. all must pass migration.Validate; otherwise the
// *migration.ConfigurationError is returned. The input is not modified.
func Plan(all []migration.Migration, applied map[int64]struct{}) ([]migration.Migration, error) {
	if err := migration.Validate(all); err != nil {
		return nil, err
	}

	pending := make([]migration.Migration, 0, len(all))

	for i := range all {
		if all[i].Direction != migration.Up {
			continue
		}

		if _, ok := applied[all[i].Version]; ok {
			continue
		}

		pending = append(pending, all[i])
	}

	return pending, nil
}

// Diverge compares applied against the Up migrations of all. Both result
// lists are sorted ascending.
func Diverge(all []migration.Migration, applied map[int64]struct{}) Divergence {
	known := make(map[int64]struct{}, len(all))

	var highest int64

	for i := range all {
		if all[i].Direction != migration.Up {
			continue
		}

		v := all[i].Version
		known[v] = struct{}{}

		if _, ok := applied[v]; ok && v > highest {
			highest = v
		}
	}

	d := Divergence{Highest: highest}

	for v := range applied {
		if _, ok := known[v]; !ok {
			d.Unknown = append(d.Unknown, v)
		}
	}

	for v := range known {
		if _, ok := applied[v]; !ok && v < highest {
			d.OutOfOrder = append(d.OutOfOrder, v)
		}
	}

	slices.Sort(d.Unknown)
	slices.Sort(d.OutOfOrder)

	return d
}
