package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/db"
	"github.com/hackgods/appointment-lifecycle/internal/doctor"
	"github.com/hackgods/appointment-lifecycle/internal/logging"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "prod")
		fallback.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	count := 20
	if v := os.Getenv("SEED_DOCTORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Fatal().Str("SEED_DOCTORS", v).Msg("SEED_DOCTORS must be a positive integer")
		}
		count = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	rdb, err := redisclient.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	if err := gofakeit.Seed(time.Now().UnixNano()); err != nil {
		logger.Fatal().Err(err).Msg("seed faker")
	}

	ids, err := seedDoctors(ctx, logger, pool, count)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}

	gen := calendar.NewGenerator(calendar.NewRedisStore(rdb), calendar.Template{
		DayStart: cfg.SlotDayStart,
		DayEnd:   cfg.SlotDayEnd,
		Step:     cfg.SlotStep,
		Days:     cfg.CalendarDays,
	})
	today := time.Now().In(cfg.ClinicLocation)
	for _, id := range ids {
		if _, err := gen.Refresh(ctx, id, calendar.Channels, today); err != nil {
			logger.Fatal().Err(err).Str("doctor_id", id).Msg("generate calendar")
		}
	}
	logger.Info().Int("doctors", len(ids)).Int("days", cfg.CalendarDays).Msg("calendars generated")

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, logger zerolog.Logger, pool *pgxpool.Pool, count int) ([]string, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	repo := doctor.NewPgRepository(tx)
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		online := roundFee(gofakeit.Price(200, 1200))
		d := doctor.Doctor{
			ID:             fmt.Sprintf("dr%03d", i),
			Name:           "Dr. " + gofakeit.Name(),
			Avatar:         gofakeit.URL(),
			Specialization: specialties[gofakeit.Number(0, len(specialties)-1)],
			OnlineFee:      online,
			ClinicFee:      roundFee(online * 1.5),
			AutoAccept:     gofakeit.Number(0, 3) == 0,
		}
		if err := repo.UpsertDoctor(ctx, d); err != nil {
			return nil, err
		}
		ids = append(ids, d.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Msg("doctors seeded")
	return ids, nil
}

// roundFee rounds to the nearest 50.
func roundFee(v float64) float64 {
	return math.Round(v/50) * 50
}
