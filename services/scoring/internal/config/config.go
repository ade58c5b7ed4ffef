package config

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "github.com/toolhub/toolhub/pkg/config"
	"github.com/toolhub/toolhub/services/scoring/internal/scoring"
)

// Config holds all configuration for the scoring service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"SCORING_HTTP_PORT" envDefault:"8011"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"toolhub"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"toolhub_secret"`
	PostgresDB   string `env:"SCORING_DB_NAME" envDefault:"toolhub_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost        string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort        int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	FeaturedCacheTTL time.Duration `env:"FEATURED_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaBrokers         []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerEnabled bool          `env:"KAFKA_CONSUMER_ENABLED" envDefault:"true"`
	KafkaConsumerGroup   string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"scoring-service-review-changed"`
	EventDedupTTL        time.Duration `env:"EVENT_DEDUP_TTL" envDefault:"24h"`

	// Admin API
	JWTSecret         string   `env:"JWT_SECRET,required"`
	AdminRateLimitRPS float64  `env:"ADMIN_RATE_LIMIT_RPS" envDefault:"5"`
	AdminRateBurst    int      `env:"ADMIN_RATE_LIMIT_BURST" envDefault:"10"`
	CORSOrigins       []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Batch recalculation
	RecalcConcurrency int `env:"RECALC_CONCURRENCY" envDefault:"4"`
	FeaturedLimit     int `env:"FEATURED_LIMIT" envDefault:"100"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load scoring config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return errors.New("POSTGRES_USER is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.FeaturedCacheTTL < 0 {
		return fmt.Errorf("FEATURED_CACHE_TTL must be >= 0, got %s", c.FeaturedCacheTTL)
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.AdminRateLimitRPS <= 0 || c.AdminRateBurst < 1 {
		return fmt.Errorf("admin rate limit must be positive, got %.2f rps burst %d", c.AdminRateLimitRPS, c.AdminRateBurst)
	}
	if c.RecalcConcurrency < 1 || c.RecalcConcurrency > 64 {
		return fmt.Errorf("RECALC_CONCURRENCY must be between 1 and 64, got %d", c.RecalcConcurrency)
	}
	if c.FeaturedLimit < 1 || c.FeaturedLimit > scoring.MaxFeaturedLimit {
		return fmt.Errorf("FEATURED_LIMIT must be between 1 and %d, got %d", scoring.MaxFeaturedLimit, c.FeaturedLimit)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}
