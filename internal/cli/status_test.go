package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/embedmigrate/migration"
	"github.com/aqasim81/embedmigrate/runner"
)

func TestStatusRows_mergesFilesAndLedger(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	ms := []migration.Migration{
		migration.New(1, "create_users", "CREATE TABLE users (id INTEGER)"),
		{Version: 1, Description: "create_users", Script: "DROP TABLE users", Direction: migration.Down},
		migration.New(2, "add_email", "ALTER TABLE users ADD COLUMN email TEXT"),
		migration.New(4, "add_index", "CREATE INDEX i ON users (email)"),
	}

	report := &runner.Report{
		Pending:  []int64{4},
		Modified: []int64{2},
		Entries: []runner.LedgerEntry{
			{Version: 1, Description: "create_users", AppliedAt: at},
			{Version: 2, Description: "add_email", AppliedAt: at},
			{Version: 3, Description: "from_newer_build", AppliedAt: at},
		},
	}

	rows := statusRows(ms, report)

	assert.Equal(t, [][]string{
		{"1", "create_users", "applied", "2026-10-19T09:30:00Z"},
		{"2", "add_email", "modified", "2026-10-19T09:30:00Z"},
		{"3", "from_newer_build", "unknown", "2026-10-19T09:30:00Z"},
		{"4", "add_index", "pending", ""},
	}, rows)
}

func TestRunStatus_afterApply(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setAppConfig(t, testConfig(t, "./testdata/migrations"))

	applyCmd, _ := newApplyCmd(t, false)
	require.NoError(t, runApply(applyCmd, nil))

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, runStatus(cmd, nil))

	out := buf.String()
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "create_users")
	assert.Contains(t, out, "applied")
	assert.Contains(t, out, "Current version: 2, 0 pending.")
}

func TestRunStatus_freshDatabase_listsPending(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setAppConfig(t, testConfig(t, "./testdata/migrations"))

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, runStatus(cmd, nil))

	out := buf.String()
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "Current version: 0, 2 pending.")
}

func TestRunStatus_noDatabaseURL_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	cfg := testConfig(t, "./testdata/migrations")
	cfg.DatabaseURL = ""
	setAppConfig(t, cfg)

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	require.ErrorIs(t, runStatus(cmd, nil), errDatabaseURLRequired)
}
