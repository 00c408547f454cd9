package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	postgres "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres"
)

// OpenMigratedPool starts a disposable Postgres container, applies migrations and returns a
// pool. Tests are skipped unless ITEST_POSTGRES=1.
// DATABASE_URL, when set, is used instead of starting a container.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("ITEST_POSTGRES") != "1" {
		t.Skip("set ITEST_POSTGRES=1 to run postgres integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		pg, err := tcpostgres.RunContainer(ctx,
			tc.WithImage("postgres:16-alpine"),
			tcpostgres.WithDatabase("deliveries"),
			tcpostgres.WithUsername("deliveries"),
			tcpostgres.WithPassword("deliveries"),
			tc.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			),
		)
		if err != nil {
			t.Fatalf("start postgres container: %v", err)
		}
		t.Cleanup(func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			_ = pg.Terminate(stopCtx)
		})
		url, err = pg.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("postgres connection string: %v", err)
		}
	}

	pool, err := postgres.NewPool(ctx, url, postgres.PoolOptions{})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}
