package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/db"
	"github.com/hackgods/appointment-lifecycle/internal/doctor"
	"github.com/hackgods/appointment-lifecycle/internal/logging"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "prod")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "calendar-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("calendar worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	rdb, err := redisclient.Connect(rootCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()

	doctors := doctor.NewPgRepository(pgPool)
	gen := calendar.NewGenerator(calendar.NewRedisStore(rdb), calendar.Template{
		DayStart: cfg.SlotDayStart,
		DayEnd:   cfg.SlotDayEnd,
		Step:     cfg.SlotStep,
		Days:     cfg.CalendarDays,
	})

	// Run once at startup
	runOnce(rootCtx, logger, doctors, gen, cfg.ClinicLocation)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping calendar worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, doctors, gen, cfg.ClinicLocation)
		}
	}
}

func runOnce(ctx context.Context, logger zerolog.Logger, doctors *doctor.PgRepository, gen *calendar.Generator, loc *time.Location) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	list, err := doctors.ListDoctors(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("list doctors failed")
		return
	}

	today := time.Now().In(loc)
	var ensured, pruned, failed int
	for _, d := range list {
		res, err := gen.Refresh(runCtx, d.ID, calendar.Channels, today)
		if err != nil {
			failed++
			logger.Error().Err(err).Str("doctor_id", d.ID).Msg("calendar refresh failed")
			continue
		}
		ensured += res.DaysEnsured
		pruned += res.DaysPruned
	}

	logger.Info().
		Int("doctors", len(list)).
		Int("days_ensured", ensured).
		Int("days_pruned", pruned).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("calendar refresh complete")
}
