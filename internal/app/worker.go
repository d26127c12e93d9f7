package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/chautari/chautari/internal/auth"
	"github.com/chautari/chautari/internal/config"
	"github.com/chautari/chautari/internal/event"
	"github.com/chautari/chautari/internal/mailer"
	"github.com/chautari/chautari/internal/repository/postgres"
	"github.com/chautari/chautari/internal/service"
	"github.com/chautari/chautari/migrations"
	"github.com/chautari/chautari/pkg/database"
	"github.com/chautari/chautari/pkg/health"
	pkgkafka "github.com/chautari/chautari/pkg/kafka"
)

// workerGroup is the Kafka consumer group shared by all worker consumers.
const workerGroup = "chautari-worker"

// idempotencyTTL bounds how long processed event IDs are remembered.
const idempotencyTTL = 24 * time.Hour

// Worker consumes marketplace events, delivers mail and sweeps expired
// verification tokens on a schedule.
type Worker struct {
	cfg          *config.Config
	logger       *slog.Logger
	pool         *pgxpool.Pool
	redis        *redis.Client
	producer     *pkgkafka.Producer
	dlq          *pkgkafka.DLQProducer
	consumers    []*pkgkafka.Consumer
	accounts     *service.AccountService
	healthServer *http.Server
}

// NewWorker creates the worker with all dependencies wired.
func NewWorker(cfg *config.Config, logger *slog.Logger) (*Worker, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	mail, err := mailer.New(cfg.SMTP, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	// Redis backs event deduplication. When it is unreachable the worker
	// still runs, falling back to in-process dedup.
	var (
		redisClient *redis.Client
		idemStore   pkgkafka.IdempotencyStore
	)
	redisClient, err = database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, using in-memory idempotency store",
			slog.String("error", err.Error()),
		)
		redisClient = nil
		idemStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	} else {
		idemStore = pkgkafka.NewRedisIdempotencyStore(redisClient, "chautari:worker", idempotencyTTL)
	}

	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	// The token sweeper reuses the account service; the worker never issues
	// JWTs or publishes account events itself.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(pool)
	eventProducer := event.NewProducer(producer, logger)
	accounts := service.NewAccountService(
		userRepo, tokenRepo, refreshTokenRepo,
		jwtManager, eventProducer, logger,
		cfg.AllowedEmailDomains, cfg.VerificationCodeTTL,
	)

	handlers := event.NewMailHandlers(mail, logger)
	consumers := buildConsumers(cfg.KafkaBrokers, handlers, idemStore, dlq, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	mux := chi.NewRouter()
	mux.Get("/health/live", healthHandler.LivenessHandler())
	mux.Get("/health/ready", healthHandler.ReadinessHandler())
	mux.Handle("/metrics", promhttp.Handler())

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Worker{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		redis:        redisClient,
		producer:     producer,
		dlq:          dlq,
		consumers:    consumers,
		accounts:     accounts,
		healthServer: healthServer,
	}, nil
}

// buildConsumers creates one consumer per subscribed topic, each wrapped with
// idempotency tracking and a dead-letter queue for poison messages.
func buildConsumers(
	brokers []string,
	handlers *event.MailHandlers,
	store pkgkafka.IdempotencyStore,
	dlq *pkgkafka.DLQProducer,
	logger *slog.Logger,
) []*pkgkafka.Consumer {
	subscriptions := map[string]pkgkafka.Handler{
		event.TopicUserVerificationRequested:  handlers.HandleVerificationRequested,
		event.TopicUserPasswordResetRequested: handlers.HandlePasswordResetRequested,
		event.TopicUserEmailVerified:          handlers.HandleEmailVerified,
		event.TopicUserRegistered:             handlers.HandleAudit,
		event.TopicListingCreated:             handlers.HandleAudit,
		event.TopicListingSold:                handlers.HandleAudit,
	}

	consumers := make([]*pkgkafka.Consumer, 0, len(subscriptions))
	for topic, h := range subscriptions {
		consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers: brokers,
			GroupID: workerGroup,
			Topic:   topic,
		}, pkgkafka.IdempotentHandler(store, h, logger), logger)
		consumers = append(consumers, consumer.WithDLQ(dlq))
	}
	return consumers
}

// Run starts the consumers, the token sweeper and the health endpoint, then
// blocks until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	for _, consumer := range w.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil {
				w.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go w.runTokenSweeper(ctx)

	go func() {
		w.logger.Info("starting worker health server",
			slog.String("addr", w.healthServer.Addr),
		)
		if err := w.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return w.Shutdown()
}

// runTokenSweeper periodically deletes expired verification and refresh
// tokens. One sweep runs immediately at startup.
func (w *Worker) runTokenSweeper(ctx context.Context) {
	w.sweepTokens(ctx)

	ticker := time.NewTicker(w.cfg.TokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepTokens(ctx)
		}
	}
}

func (w *Worker) sweepTokens(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := w.accounts.SweepExpiredTokens(sweepCtx)
	if err != nil {
		w.logger.Error("token sweep failed", slog.String("error", err.Error()))
		return
	}
	if removed > 0 {
		w.logger.Info("token sweep completed", slog.Int64("removed", removed))
	}
}

// Shutdown gracefully stops all components.
func (w *Worker) Shutdown() error {
	w.logger.Info("shutting down worker...")

	var errs []error

	httpCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.healthServer.Shutdown(httpCtx); err != nil {
		w.logger.Error("health server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, consumer := range w.consumers {
		if err := consumer.Close(); err != nil {
			w.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := w.dlq.Close(); err != nil {
		w.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := w.producer.Close(); err != nil {
		w.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if w.redis != nil {
		if err := w.redis.Close(); err != nil {
			w.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	w.pool.Close()

	w.logger.Info("worker shutdown complete")
	return errors.Join(errs...)
}
