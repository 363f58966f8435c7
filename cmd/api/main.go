package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visionpos/vision-pos/cmd/mainconfig"
	"github.com/visionpos/vision-pos/internal/analytics"
	"github.com/visionpos/vision-pos/internal/api/router"
	"github.com/visionpos/vision-pos/internal/app/bootstrap"
	"github.com/visionpos/vision-pos/internal/archive"
	"github.com/visionpos/vision-pos/internal/catalog"
	appconfig "github.com/visionpos/vision-pos/internal/config"
	"github.com/visionpos/vision-pos/internal/events"
	httpmiddleware "github.com/visionpos/vision-pos/internal/http/middleware"
	"github.com/visionpos/vision-pos/internal/notify"
	"github.com/visionpos/vision-pos/internal/observability/metrics"
	"github.com/visionpos/vision-pos/internal/quotes"
	"github.com/visionpos/vision-pos/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting vision-pos API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.StaffJWTSecret == "" {
		if cfg.Env == "production" {
			logger.Error("STAFF_JWT_SECRET is required in production")
			os.Exit(1)
		}
		logger.Warn("staff auth disabled; set STAFF_JWT_SECRET")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence
	var (
		repo     quotes.Repository
		outbox   *events.OutboxStore
		analytic *analytics.Handler
		closeSQL func()
	)
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
		outbox = events.NewOutboxStore(pool)
		repo = quotes.NewPostgresRepository(pool, outbox)

		sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open analytics connection", "error", err)
			os.Exit(1)
		}
		closeSQL = func() { _ = sqlDB.Close() }
		analytic = analytics.NewHandler(analytics.NewStore(sqlDB), logger)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory quotes and disabling analytics")
		repo = quotes.NewInMemoryRepository()
	}
	if closeSQL != nil {
		defer closeSQL()
	}

	// Catalog
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	catalogs, err := bootstrap.BuildCatalogSource(cfg, redisClient, logger)
	if err != nil {
		logger.Error("failed to build catalog", "error", err)
		os.Exit(1)
	}

	// AWS-backed delivery, archive and email
	var (
		sqsClient events.SQSAPI
		s3Client  archive.S3API
		sesClient notify.SESAPI
	)
	if cfg.UsesAWS() {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsClient = sqs.NewFromConfig(awsCfg)
		s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		sesClient = sesv2.NewFromConfig(awsCfg)
	}

	deliveryHandler, transport := bootstrap.BuildDeliveryHandler(cfg, sqsClient, logger)
	if outbox != nil {
		deliverer := events.NewDeliverer(outbox, deliveryHandler, logger).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithInterval(cfg.OutboxPollInterval)
		go deliverer.Start(ctx)
		logger.Info("outbox deliverer started", "transport", transport)
	}

	sender, provider := bootstrap.BuildEmailSender(cfg, sesClient, logger)
	logger.Info("email provider selected", "provider", provider)

	archiver := bootstrap.BuildArchiver(cfg, s3Client, logger)
	if !archiver.Enabled() {
		logger.Info("quote archive disabled")
	}

	// Quote service
	metricsHandler, quoteMetrics := setupQuoteMetrics()
	service := quotes.NewService(repo, catalogs, logger).
		WithRules(bootstrap.BuildRules(cfg, logger)).
		WithMetrics(quoteMetrics).
		WithArchiver(archiver).
		WithMailer(notify.NewMailer(sender, logger)).
		WithExpiryDays(cfg.QuoteExpiryDays)
	go service.StartExpirySweep(ctx, cfg.QuoteExpirySweep)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	go limiter.RunEviction(ctx, time.Minute, 10*time.Minute)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		QuotesHandler:      quotes.NewHandler(service, logger),
		CatalogHandler:     catalog.NewHandler(catalogs, logger),
		AnalyticsHandler:   analytic,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		StaffAuthSecret:    cfg.StaffJWTSecret,
		RateLimiter:        limiter,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupQuoteMetrics builds a dedicated registry so /metrics only exports this
// service's collectors plus the Go runtime.
func setupQuoteMetrics() (http.Handler, *metrics.QuoteMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	quoteMetrics := metrics.NewQuoteMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), quoteMetrics
}

// connectPostgresPool returns nil when no URL is configured.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		os.Exit(1)
	}
	return pool
}
