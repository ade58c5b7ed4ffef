package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toolhub/toolhub/pkg/health"
	"github.com/toolhub/toolhub/pkg/middleware"
	"github.com/toolhub/toolhub/services/scoring/internal/service"
)

const serviceName = "scoring"

// publicCacheMaxAge is the Cache-Control max-age of public score reads.
const publicCacheMaxAge = 60

// RouterOptions carries the cross-cutting settings of the HTTP surface.
type RouterOptions struct {
	// TokenValidator verifies admin bearer tokens.
	TokenValidator middleware.TokenValidator
	// AdminLimiter throttles admin routes per caller. Nil disables it.
	AdminLimiter      *middleware.RateLimiter
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all scoring service routes registered.
func NewRouter(
	aggregationService *service.AggregationService,
	featuredService *service.FeaturedService,
	healthHandler *health.Handler,
	opts RouterOptions,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(opts.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(opts.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, opts.PprofAllowedCIDRs, logger)
	}

	scoresHandler := NewScoresHandler(aggregationService, logger)
	featuredHandler := NewFeaturedHandler(featuredService, logger)

	// Public read API
	r.Route("/api/v1/tools", func(r chi.Router) {
		r.Use(middleware.CacheControl(publicCacheMaxAge))
		r.Get("/{toolId}/scores", scoresHandler.GetToolScores)
	})

	// Admin API
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(opts.TokenValidator))
		r.Use(middleware.RequireRole(middleware.RoleAdmin))
		if opts.AdminLimiter != nil {
			r.Use(opts.AdminLimiter.Middleware)
		}
		r.Use(ContentTypeJSON)

		r.Post("/scores/recalculate", scoresHandler.Recalculate)
		r.Post("/scores/recalculate-all", scoresHandler.RecalculateAll)

		r.Get("/featured", featuredHandler.ListFeatured)
		r.Post("/featured/refresh", featuredHandler.RefreshFeatured)
		r.Get("/featured/tools/{toolId}", featuredHandler.GetToolFeaturedScore)
	})

	return r
}
