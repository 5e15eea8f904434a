package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipWithoutDocker skips t when no container provider is reachable. The
// health check panics instead of skipping when no Docker host can be found.
func skipWithoutDocker(t *testing.T) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker unavailable: %v", r)
		}
	}()
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func setupPostgresStore(t *testing.T) *PostgresStore {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	skipWithoutDocker(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("twofa_db"),
		postgres.WithUsername("twofa"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := OpenPostgresStore(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestPostgresStore(t *testing.T) {
	store := setupPostgresStore(t)
	runStoreContract(t, store)
}
