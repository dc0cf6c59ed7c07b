package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// filenamePattern matches migration files in three forms:
//
//	V{version}_{name}.up.sql   (e.g., V001_create_users.up.sql)
//	{version}_{name}.down.sql  (e.g., 001_create_users.down.sql)
//	{version}_{name}.sql       (e.g., 001_initial_schema.sql, treated as up)
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by LoadFS
	`^V?(\d+)_(.+?)(?:\.(up|down))?\.sql$`,
)

// LoadFromDir scans a directory for migration files and returns them sorted.
// Files that do not match the expected naming pattern are skipped.
func LoadFromDir(dir string) ([]Migration, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	ms, err := LoadFS(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}

	for i := range ms {
		ms[i].FilePath = filepath.Join(dir, ms[i].FilePath)
	}

	return ms, nil
}

// LoadFS reads migration files from root inside fsys, typically an embed.FS,
// and returns them sorted by version with Up before Down. FilePath is set
// relative to fsys.
func LoadFS(fsys fs.FS, root string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", root, err)
	}

	var migrations []Migration

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		m, ok, err := readMigration(fsys, root, entry.Name())
		if err != nil {
			return nil, err
		}

		if ok {
			migrations = append(migrations, m)
		}
	}

	return Sort(migrations), nil
}

// readMigration parses the file name and reads the script. ok is false when
// the name does not look like a migration file.
func readMigration(fsys fs.FS, root, name string) (Migration, bool, error) {
	matches := filenamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, false, nil
	}

	version, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return Migration{}, false, fmt.Errorf("parsing version of migration file %s: %w", name, err)
	}

	direction := Up
	if matches[3] == "down" {
		direction = Down
	}

	p := path.Join(root, name)

	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return Migration{}, false, fmt.Errorf("reading migration file %s: %w", p, err)
	}

	script := strings.TrimSpace(string(data))

	return Migration{
		Version:     version,
		Description: matches[2],
		Script:      script,
		Direction:   direction,
		Checksum:    ComputeChecksum(script),
		FilePath:    p,
	}, true, nil
}
