package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/visionpos/vision-pos/internal/analytics"
	"github.com/visionpos/vision-pos/internal/catalog"
	httpmiddleware "github.com/visionpos/vision-pos/internal/http/middleware"
	"github.com/visionpos/vision-pos/internal/quotes"
	"github.com/visionpos/vision-pos/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	QuotesHandler      *quotes.Handler
	CatalogHandler     *catalog.Handler
	AnalyticsHandler   *analytics.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// StaffAuthSecret enables HMAC JWT validation on /api routes. Leave empty
	// only for local development.
	StaffAuthSecret string
	RateLimiter     *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints (health checks, scraping)
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Tenant-scoped staff API
	r.Route("/api", func(api chi.Router) {
		api.Use(requireOrgID)
		if cfg.StaffAuthSecret != "" {
			api.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))
		}
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}

		if cfg.QuotesHandler != nil {
			api.Mount("/quotes", cfg.QuotesHandler.Routes())
		}
		if cfg.CatalogHandler != nil {
			api.Get("/catalog", cfg.CatalogHandler.Get)
		}
		if cfg.AnalyticsHandler != nil {
			api.Route("/analytics", func(r chi.Router) {
				r.Get("/capture-rate", cfg.AnalyticsHandler.CaptureRate)
				r.Get("/staff-performance", cfg.AnalyticsHandler.StaffPerformance)
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
