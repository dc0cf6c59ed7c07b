package migration

import "sort"

// Sort returns a new slice of migrations ordered by Version, with the Up
// migration of a version ahead of its Down counterpart. The sort is stable to
// preserve insertion order for equal keys, so duplicates stay visible to
// Validate.
func Sort(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Version != sorted[j].Version {
			return sorted[i].Version < sorted[j].Version
		}

		return sorted[i].Direction < sorted[j].Direction
	})

	return sorted
}
