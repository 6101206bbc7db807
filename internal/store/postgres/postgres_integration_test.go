//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fitledger/internal/store"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("fitledger"),
		postgrescontainer.WithUsername("ledger"),
		postgrescontainer.WithPassword("ledger"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool := waitForPool(t, ctx, connStr)
	s := NewStore(pool)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))

	_, err = s.Get(ctx, store.KeySleep)
	require.ErrorIs(t, err, store.ErrNotFound)

	type record struct {
		Day     string   `json:"date"`
		Actions []string `json:"actions"`
	}
	in := []record{{Day: "2024-05-02", Actions: []string{"meal", "sleep"}}, {Day: "2024-05-01", Actions: []string{"planner"}}}
	require.NoError(t, store.Save(ctx, s, store.KeyActivity, in))
	require.Equal(t, in, store.Load[[]record](ctx, s, store.KeyActivity, nil))

	in = in[:1]
	require.NoError(t, store.Save(ctx, s, store.KeyActivity, in))
	require.Equal(t, in, store.Load[[]record](ctx, s, store.KeyActivity, nil))
}

func waitForPool(t *testing.T, ctx context.Context, connStr string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	deadline := time.Now().Add(30 * time.Second)
	for {
		if err := pool.Ping(ctx); err == nil {
			return pool
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres not ready: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}
