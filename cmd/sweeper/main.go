package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnomed/clinic-scheduling/internal/config"
	"github.com/turnomed/clinic-scheduling/internal/db"
	"github.com/turnomed/clinic-scheduling/internal/metrics"
	redisclient "github.com/turnomed/clinic-scheduling/internal/redis"
	"github.com/turnomed/clinic-scheduling/internal/schedule"
)

// The sweeper cancels pending appointments whose scheduled start has
// passed without the clinic confirming them, so the abandoned intervals
// stop holding their historical uniqueness slot.
func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Str("component", "sweeper").Logger()

	logger.Info().Msg("sweeper starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.SweeperInterval).Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	metrics.Register()

	repo := schedule.NewPgRepository(pgPool)
	svc := schedule.NewService(repo, redisclient.NoopLocker{}, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.SweeperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *schedule.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	cancelled, err := svc.SweepStalePending(runCtx, time.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("sweep run error")
		return
	}
	logger.Info().Int("cancelled", cancelled).Dur("took", time.Since(start)).Msg("sweep run complete")
}
