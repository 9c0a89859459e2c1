//go:build integration

package store

import (
	"Go2NetIngest/internal/config"
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its connection string.
func setupPostgres(t *testing.T) string {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("flows_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
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

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func countFlows(t *testing.T, dsn string) int {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	defer pool.Close()

	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT count(*) FROM flows").Scan(&n))
	return n
}

func TestPostgresStoreCommitAndRollback(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, config.PostgresConfig{
		DSN:            dsn,
		Table:          MigratedTable,
		MaxConns:       2,
		MigrateOnStart: true,
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	rec := testRecord(1)
	nat := netip.MustParseAddr("203.0.113.7")
	rec.PostNatSrcIPv4Address = &nat
	require.NoError(t, tx.Insert(ctx, rec))
	require.NoError(t, tx.Insert(ctx, testRecord(2)))
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 2, countFlows(t, dsn))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, testRecord(3)))
	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, 2, countFlows(t, dsn))

	var natAddr *netip.Addr
	var natPort *int32
	require.NoError(t, s.pool.QueryRow(ctx,
		"SELECT post_nat_src_ipv4_address, post_napt_src_transport_port FROM flows WHERE sequence_num = 1",
	).Scan(&natAddr, &natPort))
	require.NotNil(t, natAddr)
	assert.Equal(t, nat, *natAddr)
	assert.Nil(t, natPort)
}

func TestMigrateDownAndUp(t *testing.T) {
	dsn := setupPostgres(t)

	require.NoError(t, Migrate(dsn, false, nil))
	require.NoError(t, Migrate(dsn, false, nil), "re-running up is a no-op")
	require.NoError(t, Migrate(dsn, true, nil))
	require.NoError(t, Migrate(dsn, false, nil))
	assert.Equal(t, 0, countFlows(t, dsn))
}
