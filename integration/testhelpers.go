//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its
// connection URL. The container is terminated when the test completes.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// SetupPostgres starts a container and returns its URL together with a pool
// used to inspect the database independently of the code under test.
func SetupPostgres(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()

	dsn := SetupPostgresDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))

	return dsn, pool
}

// tableExists reports whether name exists in the current schema.
func tableExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()

	var exists bool

	err := pool.QueryRow(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1)`, name).Scan(&exists)
	require.NoError(t, err)

	return exists
}

// recordedVersions returns the versions in the ledger table, ascending.
func recordedVersions(t *testing.T, pool *pgxpool.Pool, table string) []int64 {
	t.Helper()

	rows, err := pool.Query(context.Background(), "SELECT version FROM "+table+" ORDER BY version")
	require.NoError(t, err)

	defer rows.Close()

	var versions []int64

	for rows.Next() {
		var v int64
		require.NoError(t, rows.Scan(&v))

		versions = append(versions, v)
	}

	require.NoError(t, rows.Err())

	return versions
}
