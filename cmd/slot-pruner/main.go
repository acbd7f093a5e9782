package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medshift/appointment-booking/internal/booking"
	"github.com/medshift/appointment-booking/internal/config"
	"github.com/medshift/appointment-booking/internal/db"
	"github.com/medshift/appointment-booking/internal/logging"
	redisclient "github.com/medshift/appointment-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("slot-pruner", "prod")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New("slot-pruner", cfg.Env)
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.PruneInterval).
		Dur("retention", cfg.PruneRetention).
		Msg("slot-pruner starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()

	repo := booking.NewPgStore(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, locker, log)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.PruneRetention, log)

	ticker := time.NewTicker(cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping slot pruner")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.PruneRetention, log)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, retention time.Duration, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.PruneStaleSlots(runCtx, retention)
	if err != nil {
		log.Error().Err(err).Msg("prune run error")
		return
	}
	log.Info().Int64("deleted", n).Dur("took", time.Since(start)).Msg("prune run complete")
}
