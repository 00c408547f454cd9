package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/adapters/httpapi"
	"github.com/campus-logistics/delivery-tracker-api/internal/adapters/storage"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/dashboard"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/deliveries"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/seed"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/session"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/staff"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/password"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/sessiontoken"
	platformclock "github.com/campus-logistics/delivery-tracker-api/internal/platform/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/config"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/logging"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/metrics"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/observability"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()
	stores, err := storage.Open(ctx, cfg, clk, storage.Options{Migrate: true, Logger: logger})
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer stores.Close()

	m := metrics.New()
	hasher := password.NewHasher(cfg.BcryptCost)
	signer := sessiontoken.NewSigner(cfg.SessionSecret, clk)

	sessionSvc := session.NewService(stores.Users, stores.Sessions, signer, hasher, clk, session.Options{
		TTL:     cfg.SessionTTL,
		Logger:  logger.Named("session"),
		Metrics: m,
	})
	staffSvc := staff.NewService(stores.Staff, stores.Deliveries, stores.Users, sessionSvc, clk, logger.Named("staff"))
	deliverySvc := deliveries.NewService(stores.Deliveries, stores.Users, staffSvc, clk, deliveries.Options{
		Logger:  logger.Named("deliveries"),
		Metrics: m,
	})
	dashSvc := dashboard.NewService(deliverySvc, staffSvc)

	if cfg.SeedDemoData {
		if _, err := seed.Run(ctx, seed.Deps{
			Users:      stores.Users,
			Deliveries: stores.Deliveries,
			Roster:     staffSvc,
			Hasher:     hasher,
			Clock:      clk,
			Logger:     logger.Named("seed"),
		}); err != nil {
			logger.Fatal("seed demo data", zap.Error(err))
		}
	}

	api := httpapi.NewServer(sessionSvc, deliverySvc, staffSvc, dashSvc, stores.Idem, clk, logger.Named("http"))
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		Logger:  logger.Named("http"),
		Metrics: m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
