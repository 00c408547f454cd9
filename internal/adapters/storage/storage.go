// Package storage opens the repositories selected by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	memdeliveryrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/deliveryrepo"
	memidempotency "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/idempotency"
	memsessionstore "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/sessionstore"
	memstaffrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/staffrepo"
	memuserrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/userrepo"
	postgres "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres"
	pgdeliveryrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/deliveryrepo"
	pgidempotency "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/idempotency"
	pgstaffrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/staffrepo"
	pguserrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/userrepo"
	redissessionstore "github.com/campus-logistics/delivery-tracker-api/internal/adapters/redis/sessionstore"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/config"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/idempotency"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/sessionstore"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/staffrepo"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

type Options struct {
	// Migrate applies pending migrations after connecting to postgres.
	Migrate bool
	Logger  *zap.Logger
}

// Stores bundles every persistence port. Pool is nil for the memory backend.
type Stores struct {
	Users      userrepo.Repository
	Deliveries deliveryrepo.Repository
	Staff      staffrepo.Repository
	Idem       idempotency.Store
	Sessions   sessionstore.Store
	Pool       *pgxpool.Pool

	closers []func()
}

func Open(ctx context.Context, cfg config.Config, clk clockport.Clock, opts Options) (*Stores, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stores{}

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if opts.Migrate {
			if err := postgres.Migrate(ctx, pool, "up"); err != nil {
				s.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s.Pool = pool
		s.Users = pguserrepo.NewRepo(pool)
		s.Deliveries = pgdeliveryrepo.NewRepo(pool)
		s.Staff = pgstaffrepo.NewRepo(pool)
		s.Idem = pgidempotency.NewStore(pool)
	case config.BackendMemory:
		s.Users = memuserrepo.NewRepo()
		s.Deliveries = memdeliveryrepo.NewRepo()
		s.Staff = memstaffrepo.NewRepo()
		s.Idem = memidempotency.NewStore()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	switch cfg.SessionBackend {
	case config.BackendRedis:
		rdb, err := redissessionstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		s.Sessions = redissessionstore.NewStore(rdb, clk)
	case config.BackendMemory:
		s.Sessions = memsessionstore.NewStore(clk)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	log.Info("storage opened",
		zap.String("storage", cfg.StorageBackend),
		zap.String("sessions", cfg.SessionBackend),
	)
	return s, nil
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
