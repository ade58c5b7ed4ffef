package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/toolhub/toolhub/pkg/database"
	"github.com/toolhub/toolhub/pkg/health"
	pkgkafka "github.com/toolhub/toolhub/pkg/kafka"
	"github.com/toolhub/toolhub/services/scoring/internal/config"
	"github.com/toolhub/toolhub/services/scoring/internal/event"
	"github.com/toolhub/toolhub/services/scoring/internal/repository"
	"github.com/toolhub/toolhub/services/scoring/internal/repository/postgres"
	"github.com/toolhub/toolhub/services/scoring/internal/repository/redis"
	"github.com/toolhub/toolhub/services/scoring/internal/service"
	"github.com/toolhub/toolhub/services/scoring/migrations"
)

const serviceName = "scoring"

// Core holds the dependencies shared by the HTTP server and the one-shot
// rescore jobs: storage, cache, event producer and the two services.
type Core struct {
	Pool     *pgxpool.Pool
	Redis    *goredis.Client // nil when Redis was unreachable at startup
	Producer *pkgkafka.Producer

	Aggregation *service.AggregationService
	Featured    *service.FeaturedService
	Health      *health.Handler

	logger *slog.Logger
}

// NewCore connects to PostgreSQL, Redis and Kafka, runs migrations and
// builds the services. PostgreSQL is required; Redis and Kafka failures
// leave the service running degraded.
func NewCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the featured cache; without it every listing is computed.
	var (
		redisClient *goredis.Client
		cache       repository.FeaturedCache
	)
	redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
		Host:        cfg.RedisHost,
		Port:        cfg.RedisPort,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		logger.Warn("redis unavailable, featured cache disabled", slog.String("error", err.Error()))
		redisClient = nil
	} else if cfg.FeaturedCacheTTL > 0 {
		cache = redis.NewFeaturedCache(redisClient, cfg.FeaturedCacheTTL)
		logger.Info("featured cache enabled", slog.Duration("ttl", cfg.FeaturedCacheTTL))
	}

	// Initialize Kafka producer with connection validation and retry.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	tools := postgres.NewToolRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	aggregation := service.NewAggregationService(
		tools,
		postgres.NewReviewRepository(pool),
		postgres.NewScoreRepository(pool),
		eventProducer,
		logger,
		cfg.RecalcConcurrency,
	)
	featured := service.NewFeaturedService(
		tools,
		postgres.NewEngagementRepository(pool),
		cache,
		eventProducer,
		logger,
	)

	// Health checks.
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
		return producer.Ping(ctx)
	})

	return &Core{
		Pool:        pool,
		Redis:       redisClient,
		Producer:    producer,
		Aggregation: aggregation,
		Featured:    featured,
		Health:      healthHandler,
		logger:      logger,
	}, nil
}

// Close releases the producer, Redis client and pool, in that order.
func (c *Core) Close() error {
	var errs []error

	if err := c.Producer.Close(); err != nil {
		c.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	c.Pool.Close()

	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
