// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"activation-service/internal/config"
	"activation-service/internal/domain/ports/repository"
	"activation-service/internal/infra/api"
	"activation-service/internal/infra/db"
	pg "activation-service/internal/infra/db/postgres"
	"activation-service/internal/infra/logging"
	"activation-service/internal/infra/metrics"
	red "activation-service/internal/infra/redis"
	"activation-service/internal/infra/sched"
	"activation-service/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (empty: env and defaults only)")
	devMode := flag.Bool("dev", false, "developer mode: console logs, unredacted codes, in-memory store by default")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("timezone")
	}

	// ---- Record store ----
	store, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("open store")
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}()
	logger.Info().Str("driver", store.Driver).Msg("record store ready")

	records := store.Records
	if store.Driver == config.DriverMemory && cfg.Runtime.Dev {
		seedDemo(ctx, records, loc, logger)
	}

	// ---- Redis (optional) ----
	var locker repository.Locker
	if cfg.Redis.Cache || cfg.Redis.Lock {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()

		if cfg.Redis.Cache {
			if store.Driver == config.DriverPostgres {
				records = pg.NewActivationRepoCacheDecorator(records, redisClient, cfg.Redis.TTL, logger)
				logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("record cache enabled")
			} else {
				logger.Warn().Str("driver", store.Driver).Msg("redis.cache only applies to the postgres store; ignored")
			}
		}
		if cfg.Redis.Lock {
			locker = red.NewLocker(redisClient)
			logger.Info().Msg("validate lock enabled")
		}
	}

	// ---- Use case ----
	activationUC := usecase.NewActivationUseCase(records, store.Tx, locker, logger,
		usecase.WithLocation(loc),
		usecase.WithDevMode(cfg.Runtime.Dev),
	)

	// ---- Metrics ----
	if cfg.Metrics.Enabled {
		metrics.MustRegister()
		metrics.SetBuildInfo(version, commit, store.Driver)
		if store.Pool != nil {
			worker := sched.NewPoolStatsWorker(store.Driver, cfg.Metrics.PoolStatsInterval, sched.PgxPoolStats(store.Pool), logger)
			go func() { _ = worker.Run(ctx) }()
		}
	}

	// ---- HTTP ----
	opts := []api.ServerOption{
		api.WithRequestTimeout(cfg.HTTP.RequestTimeout),
		api.WithMetrics(cfg.Metrics.Enabled),
	}
	if cfg.Admin.JWTSecret != "" {
		opts = append(opts, api.WithAdminAuth(api.NewAuthManager(cfg.Admin.JWTSecret, time.Hour)))
	} else {
		logger.Warn().Msg("admin.jwt_secret not set; deactivate and update-expiry are unauthenticated")
	}
	srv := api.NewServer(activationUC, logger, opts...)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		logger.Error().Err(err).Msg("http server error")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
}
