//go:build integration

package postgres_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zkUSD-Protocol/services/internal/store/postgres"
)

// startPostgres launches a throwaway PostgreSQL container and returns its
// connection string. The container is terminated when the test finishes.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	// Postgres restarts once during image init, hence the second occurrence.
	ready := wait.ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(30 * time.Second)

	pgc, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test_oracle_engine"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(ready),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgc.Terminate(context.Background()))
	})

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// openMigrated connects to url and brings the schema up to date. Migrations
// are tracked per version, so rerunning against a shared database is a no-op.
func openMigrated(t *testing.T, url string) *postgres.DB {
	t.Helper()

	db, err := postgres.New(postgres.Config{
		URL:             url,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, self, _, _ := runtime.Caller(0)
	require.NoError(t, db.RunMigrations(filepath.Join(filepath.Dir(self), "migrations")))
	return db
}
