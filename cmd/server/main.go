package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"
	"github.com/duregger/cafe-rio-nutrition/internal/middleware"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"
	"github.com/duregger/cafe-rio-nutrition/internal/repository/memstore"
	"github.com/duregger/cafe-rio-nutrition/internal/router"
	"github.com/duregger/cafe-rio-nutrition/internal/service"
	"github.com/duregger/cafe-rio-nutrition/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in development, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	var repos *repository.Repositories
	if cfg.UsesMemoryStore() {
		log.Warn().Msg("using the in-process store; data is lost on exit")
		repos = memstore.New().Repositories()
	} else {
		db, err := infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		repos = repository.NewRepositories(db)
	}

	// Redis is optional: without it reads are uncached and admin jobs run inline.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; cache and job queue disabled")
			rdb = nil
		}
	}

	var verifier service.TokenVerifier
	if cfg.IdentityTokenSecret != "" {
		verifier = infra.NewJWTVerifier(cfg.IdentityTokenSecret, cfg.IdentityIssuer, cfg.IdentityAudience)
	} else {
		log.Warn().Msg("IDENTITY_TOKEN_SECRET not set; only API keys are accepted")
	}

	metrics := infra.NewCollector("nutrition")
	catalog := service.NewCatalog(repos, cfg, verifier, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cache infra.ResponseCache = infra.NoopCache{}
	var dispatcher worker.Dispatcher = worker.NewInlineDispatcher(catalog.Reconciler)
	if rdb != nil {
		cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
		cache = infra.NewRedisCache(rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second, cb, metrics)
		dispatcher = worker.NewDispatcher(rdb)
		worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, catalog.Reconciler)
	}
	worker.StartReconcileCron(ctx, catalog.Reconciler, time.Duration(cfg.ReconcileIntervalMinutes)*time.Minute)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	limiter.StartPurge(ctx)

	r := router.New(router.Deps{
		Config:     cfg,
		Catalog:    catalog,
		Ping:       repos.Ping,
		Redis:      rdb,
		Cache:      cache,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Limiter:    limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("nutrition catalog listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
