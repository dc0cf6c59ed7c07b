package ledger_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/embedmigrate/internal/database"
	"github.com/aqasim81/embedmigrate/internal/ledger"
	"github.com/aqasim81/embedmigrate/migration"
)

func openTestDB(t *testing.T) (*sql.DB, database.Dialect) {
	t.Helper()

	db, dialect, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), database.Options{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db, dialect
}

func newLedger(t *testing.T) (*ledger.Ledger, *sql.DB) {
	t.Helper()

	db, dialect := openTestDB(t)

	l, err := ledger.New(db, dialect, "")
	require.NoError(t, err)
	require.NoError(t, l.EnsureTable(context.Background()))

	return l, db
}

func TestNew_defaultsTableName(t *testing.T) {
	t.Parallel()

	l, err := ledger.New(nil, database.SQLiteDialect{}, "")

	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultTable, l.Table())
}

func TestValidateTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{name: "default", table: "schema_migrations"},
		{name: "leading underscore", table: "_app_versions"},
		{name: "digits after first rune", table: "ledger2"},
		{name: "leading digit", table: "2ledger", wantErr: true},
		{name: "quote injection", table: `x"; DROP TABLE users; --`, wantErr: true},
		{name: "schema qualified", table: "public.schema_migrations", wantErr: true},
		{name: "too long", table: strings.Repeat("t", 64), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ledger.ValidateTableName(tt.table)
			if tt.wantErr {
				require.ErrorIs(t, err, ledger.ErrInvalidTableName)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestEnsureTable_isIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, dialect := openTestDB(t)

	l, err := ledger.New(db, dialect, "app_versions")
	require.NoError(t, err)

	exists, err := l.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, l.EnsureTable(ctx))
	require.NoError(t, l.EnsureTable(ctx))

	exists, err = l.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAppliedVersions_emptyLedger(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)

	applied, err := l.AppliedVersions(context.Background())

	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestAppliedVersions_missingTable_returnsError(t *testing.T) {
	t.Parallel()

	db, dialect := openTestDB(t)

	l, err := ledger.New(db, dialect, "")
	require.NoError(t, err)

	_, err = l.AppliedVersions(context.Background())
	require.Error(t, err)
}

func TestRecordApplied_roundTripsThroughEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, db := newLedger(t)

	appliedAt := time.Date(2026, 3, 14, 15, 9, 26, 535897000, time.FixedZone("EET", 2*60*60))

	require.NoError(t, l.RecordApplied(ctx, db, ledger.RecordParams{
		Version: 5, Description: "index_email", Checksum: "c5", AppliedAt: appliedAt, DurationMs: 12,
	}))
	require.NoError(t, l.RecordApplied(ctx, db, ledger.RecordParams{
		Version: 1, Description: "initial_schema", Checksum: "c1", AppliedAt: appliedAt, DurationMs: 3,
	}))

	applied, err := l.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.VersionSet(1, 5), applied)

	entries, err := l.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(1), entries[0].Version)
	assert.Equal(t, "initial_schema", entries[0].Description)
	assert.Equal(t, "c1", entries[0].Checksum)
	assert.Equal(t, int64(3), entries[0].DurationMs)
	assert.True(t, appliedAt.Equal(entries[0].AppliedAt), "applied_at round trip")
	assert.Equal(t, time.UTC, entries[0].AppliedAt.Location())
	assert.Equal(t, int64(5), entries[1].Version)
}

func TestRecordApplied_duplicate_returnsDuplicateVersionError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, db := newLedger(t)

	p := ledger.RecordParams{Version: 2, Description: "add_col", Checksum: "x", AppliedAt: time.Now()}
	require.NoError(t, l.RecordApplied(ctx, db, p))

	err := l.RecordApplied(ctx, db, p)

	var dup *migration.DuplicateVersionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(2), dup.Version)
}

func TestRecordApplied_insideRolledBackTx_leavesNoEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, db := newLedger(t)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, l.RecordApplied(ctx, tx, ledger.RecordParams{Version: 1, AppliedAt: time.Now()}))
	require.NoError(t, tx.Rollback())

	applied, err := l.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestVersionSet(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[int64]struct{}{1: {}, 7: {}}, ledger.VersionSet(1, 7, 1))
	assert.Empty(t, ledger.VersionSet())
}
