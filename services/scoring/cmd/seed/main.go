// Command seed fills a development scoring database with tools, structured
// reviews and engagement rows so the scoring jobs have realistic input.
//
// It writes directly to PostgreSQL and does not publish events; run
// `rescore all` afterwards to compute aggregated scores and the featured set.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	pkgconfig "github.com/toolhub/toolhub/pkg/config"
	"github.com/toolhub/toolhub/pkg/database"
	"github.com/toolhub/toolhub/pkg/logger"
	"github.com/toolhub/toolhub/services/scoring/migrations"
)

type seedConfig struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"toolhub"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"toolhub_secret"`
	PostgresDB   string `env:"SCORING_DB_NAME" envDefault:"toolhub_db"`
	PostgresSSL  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	Tools          int    `env:"SEED_TOOLS" envDefault:"200"`
	ReviewsPerTool int    `env:"SEED_REVIEWS_PER_TOOL" envDefault:"8"`
	RandomSeed     uint64 `env:"SEED_RANDOM_SEED" envDefault:"42"`
}

func (c *seedConfig) Validate() error {
	if c.Tools < 1 || c.Tools > 100000 {
		return fmt.Errorf("SEED_TOOLS must be between 1 and 100000, got %d", c.Tools)
	}
	if c.ReviewsPerTool < 0 || c.ReviewsPerTool > 1000 {
		return fmt.Errorf("SEED_REVIEWS_PER_TOOL must be between 0 and 1000, got %d", c.ReviewsPerTool)
	}
	return nil
}

func main() {
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("scoring-seed", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *seedConfig, log *slog.Logger) error {
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.RandomSeed, cfg.RandomSeed^0x9e3779b97f4a7c15))
	tools := generate(rng, cfg.Tools, cfg.ReviewsPerTool, time.Now().UTC())

	start := time.Now()
	var reviews, engagement int
	err = database.InTx(ctx, pool, func(tx pgx.Tx) error {
		for i := range tools {
			if err := insertTool(ctx, tx, &tools[i]); err != nil {
				return err
			}
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"structured_reviews"},
			[]string{"tool_id", "user_id", "metric_scores", "overall_rating", "reviewer_type", "is_verified", "status", "created_at", "updated_at"},
			pgx.CopyFromRows(reviewRows(tools)))
		if err != nil {
			return fmt.Errorf("copy structured reviews: %w", err)
		}
		reviews = int(n)

		n, err = tx.CopyFrom(ctx, pgx.Identifier{"tool_reviews"},
			[]string{"tool_id", "user_id", "rating", "created_at"},
			pgx.CopyFromRows(starRows(tools)))
		if err != nil {
			return fmt.Errorf("copy tool reviews: %w", err)
		}
		engagement = int(n)

		n, err = tx.CopyFrom(ctx, pgx.Identifier{"tool_saves"},
			[]string{"tool_id", "user_id", "created_at"},
			pgx.CopyFromRows(saveRows(tools)))
		if err != nil {
			return fmt.Errorf("copy tool saves: %w", err)
		}
		engagement += int(n)
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("seed completed",
		slog.Int("tools", len(tools)),
		slog.Int("structured_reviews", reviews),
		slog.Int("engagement_rows", engagement),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func insertTool(ctx context.Context, tx pgx.Tx, t *toolSeed) error {
	q := t.quality
	err := tx.QueryRow(ctx,
		`INSERT INTO tools (name, category, status, popularity,
			content_quality, speed_efficiency, creative_features,
			integration_options, learning_curve, value_for_money,
			is_premium, is_tool_of_the_week, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		t.name, t.category, string(t.status), t.popularity,
		q[0], q[1], q[2], q[3], q[4], q[5],
		t.premium, t.toolOfTheWeek, t.createdAt,
	).Scan(&t.id)
	if err != nil {
		return fmt.Errorf("insert tool %q: %w", t.name, err)
	}
	return nil
}
