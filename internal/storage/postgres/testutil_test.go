package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImage    = "postgres:16-alpine"
	schemaGlob   = "../migrations/postgres/*.sql"
	readyLogLine = "database system is ready to accept connections"
)

// setupTestDB starts a throwaway Postgres with the backtest schema applied.
// Tests are skipped under -short.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase("stock_agents"),
		postgres.WithUsername("agents"),
		postgres.WithPassword("agents"),
		testcontainers.WithWaitStrategy(
			wait.ForLog(readyLogLine).WithOccurrence(2).WithStartupTimeout(90*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPoolWithOptions(ctx, dsn, PoolOptions{MaxConns: 4})
	require.NoError(t, err)

	applySchema(t, pool)

	return pool, func() {
		pool.Close()
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	}
}

// applySchema runs every migration file in one transaction, in file name order.
func applySchema(t *testing.T, pool *Pool) {
	t.Helper()

	files, err := filepath.Glob(schemaGlob)
	require.NoError(t, err)
	require.NotEmpty(t, files, "no migrations under %s", schemaGlob)

	err = pgx.BeginFunc(context.Background(), pool, func(tx pgx.Tx) error {
		for _, f := range files {
			body, err := os.ReadFile(f)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(context.Background(), string(body)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err, "apply schema")
}
