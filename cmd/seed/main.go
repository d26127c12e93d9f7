// Command seed prepares a fresh chautari database: it runs migrations,
// inserts the default categories and optionally creates a superuser account.
//
// Superuser credentials come from flags, falling back to the SUPERUSER_EMAIL
// and SUPERUSER_PASSWORD environment variables. Without either, only the
// categories are seeded.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/chautari/chautari/internal/auth"
	"github.com/chautari/chautari/internal/config"
	"github.com/chautari/chautari/internal/repository/postgres"
	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/migrations"
	"github.com/chautari/chautari/pkg/database"
	apperrors "github.com/chautari/chautari/pkg/errors"
	"github.com/chautari/chautari/pkg/logger"
)

func main() {
	var (
		superEmail    = flag.String("superuser-email", os.Getenv("SUPERUSER_EMAIL"), "superuser email address")
		superPassword = flag.String("superuser-password", os.Getenv("SUPERUSER_PASSWORD"), "superuser password")
		superFirst    = flag.String("superuser-first-name", "Admin", "superuser first name")
		superLast     = flag.String("superuser-last-name", "", "superuser last name")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("chautari-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	categoryService := service.NewCategoryService(postgres.NewCategoryRepository(pool), log)
	created, err := categoryService.Seed(ctx)
	if err != nil {
		log.Error("failed to seed categories", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("categories seeded", slog.Int("created", created))

	if *superEmail == "" || *superPassword == "" {
		log.Info("no superuser credentials provided, skipping superuser creation")
		return
	}

	// Superuser creation never publishes events, so no Kafka producer is wired.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	accounts := service.NewAccountService(
		postgres.NewUserRepository(pool),
		postgres.NewTokenRepository(pool),
		postgres.NewRefreshTokenRepository(pool),
		jwtManager, nil, log,
		cfg.AllowedEmailDomains, cfg.VerificationCodeTTL,
	)

	user, err := accounts.CreateSuperuser(ctx, *superEmail, *superPassword, *superFirst, *superLast)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			log.Info("superuser already exists", slog.String("email", *superEmail))
			return
		}
		log.Error("failed to create superuser", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("superuser created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
}
