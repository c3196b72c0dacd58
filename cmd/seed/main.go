package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/availability"
	"github.com/hackgods/health-first-scheduling/internal/config"
	"github.com/hackgods/health-first-scheduling/internal/db"
	"github.com/hackgods/health-first-scheduling/internal/logging"
	"github.com/hackgods/health-first-scheduling/internal/provider"
	redisclient "github.com/hackgods/health-first-scheduling/internal/redis"
)

// SeedPassword is the login password of every seeded provider.
const SeedPassword = "SeedPassword123!"

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
	"Otolaryngology",
}

var timezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
}

type seedOptions struct {
	providers int
	days      int
	seed      int64
}

func main() {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fake providers and availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.providers, "providers", 25, "Number of providers to register")
	cmd.Flags().IntVar(&opts.days, "days", 14, "Days of availability to create per provider, starting tomorrow")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Faker seed (0 seeds from the clock)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PostgresMaxConn), AppName: "seed"})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if _, err := db.NewMigrator(pool).Up(ctx); err != nil {
		return err
	}

	rdb, err := redisclient.Connect(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	if opts.seed == 0 {
		opts.seed = time.Now().UnixNano()
	}
	if err := gofakeit.Seed(opts.seed); err != nil {
		return err
	}

	providers := provider.NewService(provider.NewPgRepository(pool), logger)
	avail := availability.NewService(
		availability.NewPgRepository(pool),
		providers,
		db.NewTransactor(pool),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		logger,
	)

	logger.Info().Int("providers", opts.providers).Int("days", opts.days).Msg("seed starting")

	windows, skipped := 0, 0
	for i := 0; i < opts.providers; i++ {
		p, err := providers.Register(ctx, fakeRegistration())
		if err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				skipped++
				continue
			}
			return fmt.Errorf("register provider: %w", err)
		}

		n, err := seedAvailability(ctx, avail, p.ID, opts.days)
		if err != nil {
			return fmt.Errorf("seed availability for %s: %w", p.ID, err)
		}
		windows += n
	}

	logger.Info().
		Int("windows", windows).
		Int("duplicate_providers", skipped).
		Str("password", SeedPassword).
		Msg("seed complete")
	return nil
}

func fakeRegistration() provider.Registration {
	first := gofakeit.FirstName()
	last := gofakeit.LastName()
	return provider.Registration{
		FirstName:         first,
		LastName:          last,
		Email:             strings.ToLower(fmt.Sprintf("%s.%s.%s@clinic.test", first, last, gofakeit.Numerify("####"))),
		PhoneNumber:       "+1" + gofakeit.Numerify("##########"),
		Password:          SeedPassword,
		ConfirmPassword:   SeedPassword,
		Specialization:    gofakeit.RandomString(specialties),
		LicenseNumber:     "MD" + gofakeit.Numerify("#########"),
		YearsOfExperience: gofakeit.Number(0, 40),
		ClinicAddress: provider.ClinicAddress{
			Street: gofakeit.Street(),
			City:   gofakeit.City(),
			State:  gofakeit.StateAbr(),
			Zip:    gofakeit.Zip(),
		},
		Status: provider.VerificationVerified,
	}
}

// seedAvailability gives a provider one weekday window per day, morning or
// afternoon, skipping weekends.
func seedAvailability(ctx context.Context, svc *availability.Service, providerID uuid.UUID, days int) (int, error) {
	tz := gofakeit.RandomString(timezones)
	slot := []int{15, 20, 30, 45, 60}[gofakeit.Number(0, 4)]
	apptType := []availability.AppointmentType{
		availability.TypeConsultation,
		availability.TypeFollowUp,
		availability.TypeTelemedicine,
	}[gofakeit.Number(0, 2)]

	location := availability.Location{
		Type:       availability.LocationClinic,
		Address:    gofakeit.Street() + ", " + gofakeit.City(),
		RoomNumber: gofakeit.Numerify("Room ###"),
	}
	if apptType == availability.TypeTelemedicine {
		location = availability.Location{Type: availability.LocationTelemedicine}
	}

	fee := decimal.NewFromInt(int64(gofakeit.Number(8, 40) * 10))
	today := availability.CivilDate(time.Now().UTC())

	created := 0
	for d := 1; d <= days; d++ {
		date := today.AddDate(0, 0, d)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		start, end := availability.TimeOfDay(9 * 60), availability.TimeOfDay(12 * 60)
		if gofakeit.Bool() {
			start, end = availability.TimeOfDay(13 * 60), availability.TimeOfDay(17 * 60)
		}

		_, _, err := svc.Create(ctx, providerID, availability.WindowInput{
			Date:            date,
			StartTime:       start,
			EndTime:         end,
			Timezone:        tz,
			SlotDuration:    slot,
			BreakDuration:   []int{0, 5, 10}[gofakeit.Number(0, 2)],
			AppointmentType: apptType,
			Location:        location,
			Pricing: &availability.Pricing{
				BaseFee:           decimal.NewNullDecimal(fee),
				InsuranceAccepted: gofakeit.Bool(),
				Currency:          availability.DefaultCurrency,
			},
		})
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
