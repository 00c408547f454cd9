// Command dbtool manages the postgres schema and demo data.
//
//	dbtool migrate up|down|status
//	dbtool seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	postgres "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres"
	"github.com/campus-logistics/delivery-tracker-api/internal/adapters/storage"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/seed"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/session"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/staff"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/password"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/sessiontoken"
	platformclock "github.com/campus-logistics/delivery-tracker-api/internal/platform/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/config"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/logging"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.StorageBackend != config.BackendPostgres {
		log.Fatalf("dbtool needs STORAGE_BACKEND=postgres (got %q)", cfg.StorageBackend)
	}
	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "migrate":
		if len(os.Args) < 3 {
			usage()
		}
		if err := migrate(ctx, cfg, os.Args[2]); err != nil {
			logger.Fatal("migrate", zap.String("command", os.Args[2]), zap.Error(err))
		}
		logger.Info("migrate done", zap.String("command", os.Args[2]))
	case "seed":
		res, err := runSeed(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("seed", zap.Error(err))
		}
		logger.Info("seed done", zap.Int("users", res.Users), zap.Int("deliveries", res.Deliveries))
	default:
		usage()
	}
}

func migrate(ctx context.Context, cfg config.Config, command string) error {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	return postgres.Migrate(ctx, pool, command)
}

func runSeed(ctx context.Context, cfg config.Config, logger *zap.Logger) (seed.Result, error) {
	clk := platformclock.NewSystemClock()
	stores, err := storage.Open(ctx, cfg, clk, storage.Options{Migrate: true, Logger: logger})
	if err != nil {
		return seed.Result{}, err
	}
	defer stores.Close()

	hasher := password.NewHasher(cfg.BcryptCost)
	sessionSvc := session.NewService(stores.Users, stores.Sessions, sessiontoken.NewSigner(cfg.SessionSecret, clk), hasher, clk, session.Options{Logger: logger})
	roster := staff.NewService(stores.Staff, stores.Deliveries, stores.Users, sessionSvc, clk, logger)

	return seed.Run(ctx, seed.Deps{
		Users:      stores.Users,
		Deliveries: stores.Deliveries,
		Roster:     roster,
		Hasher:     hasher,
		Clock:      clk,
		Logger:     logger,
	})
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dbtool migrate up|down|status | dbtool seed")
	os.Exit(2)
}
