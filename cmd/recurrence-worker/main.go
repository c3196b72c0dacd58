package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/health-first-scheduling/internal/availability"
	"github.com/hackgods/health-first-scheduling/internal/config"
	"github.com/hackgods/health-first-scheduling/internal/db"
	"github.com/hackgods/health-first-scheduling/internal/logging"
	"github.com/hackgods/health-first-scheduling/internal/provider"
	redisclient "github.com/hackgods/health-first-scheduling/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("prod", "info", "recurrence-worker")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "recurrence-worker")
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("horizon", cfg.MaterializeHorizon).
		Msg("recurrence worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PostgresMaxConn), AppName: "recurrence-worker"})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.Connect(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	svc := availability.NewService(
		availability.NewPgRepository(pgPool),
		provider.NewPgRepository(pgPool),
		db.NewTransactor(pgPool),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.MaterializeHorizon, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping recurrence worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.MaterializeHorizon, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *availability.Service, horizon time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now().UTC()
	res, err := svc.MaterializeRecurring(runCtx, start, horizon)
	if err != nil {
		logger.Error().Err(err).Msg("materialization run error")
		return
	}
	logger.Info().
		Int("series", res.Roots).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Dur("took", time.Since(start)).
		Msg("materialization run complete")
}
