package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	pkgkafka "github.com/toolhub/toolhub/pkg/kafka"
	"github.com/toolhub/toolhub/pkg/middleware"
	"github.com/toolhub/toolhub/pkg/tracing"
	"github.com/toolhub/toolhub/services/scoring/internal/config"
	"github.com/toolhub/toolhub/services/scoring/internal/event"
	handler "github.com/toolhub/toolhub/services/scoring/internal/handler/http"
)

// Version is reported to the tracing backend.
const Version = "0.1.0"

// App wires together all dependencies and runs the scoring service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	core           *Core
	httpServer     *http.Server
	adminLimiter   *middleware.RateLimiter
	reviewConsumer *pkgkafka.Consumer // nil when KAFKA_CONSUMER_ENABLED is false
	dlq            *pkgkafka.DLQProducer
	tracerShutdown tracing.ShutdownFunc
}

// InitTracing installs the global tracer provider for the scoring service.
func InitTracing(ctx context.Context, cfg *config.Config) (tracing.ShutdownFunc, error) {
	shutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "scoring-service",
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	return shutdown, nil
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := InitTracing(ctx, cfg)
	if err != nil {
		return nil, err
	}

	core, err := NewCore(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		core:           core,
		tracerShutdown: tracerShutdown,
	}

	// Review events trigger recalculation of the affected tool.
	if cfg.KafkaConsumerEnabled {
		var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(cfg.EventDedupTTL)
		if core.Redis != nil {
			store = pkgkafka.NewRedisIdempotencyStore(core.Redis, "scoring:events:", cfg.EventDedupTTL)
		}
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

		eventConsumer := event.NewConsumer(core.Aggregation, logger)
		a.reviewConsumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:      cfg.KafkaBrokers,
			GroupID:      cfg.KafkaConsumerGroup,
			Topic:        event.TopicReviewChanged,
			MinBytes:     1,
			MaxBytes:     10e6,
			RetryBackoff: 500 * time.Millisecond,
		}, pkgkafka.IdempotentHandler(store, eventConsumer.HandleReviewChanged, logger), logger, pkgkafka.WithDLQ(a.dlq))
	}

	// HTTP router.
	a.adminLimiter = middleware.NewRateLimiter(cfg.AdminRateLimitRPS, cfg.AdminRateBurst, logger)
	router := handler.NewRouter(core.Aggregation, core.Featured, core.Health, handler.RouterOptions{
		TokenValidator:    middleware.NewJWTValidator(cfg.JWTSecret),
		AdminLimiter:      a.adminLimiter,
		CORS:              middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	}, logger)

	// Recalculate-all can run for a while on large catalogs.
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and Kafka consumer, then blocks until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.reviewConsumer != nil {
		go func() {
			if err := a.reviewConsumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("review changed consumer: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component failed", slog.String("error", runErr.Error()))
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer and dead-letter producer
// 4. Kafka producer, Redis, PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.adminLimiter.Stop()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.reviewConsumer != nil {
		if err := a.reviewConsumer.Close(); err != nil {
			a.logger.Error("review consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.core.Close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
