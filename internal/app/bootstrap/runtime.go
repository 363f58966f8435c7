package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/visionpos/vision-pos/internal/catalog"
	appconfig "github.com/visionpos/vision-pos/internal/config"
	"github.com/visionpos/vision-pos/internal/pricing"
	"github.com/visionpos/vision-pos/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildCatalogSource loads the price list (CATALOG_PATH or the embedded
// default), applies env overrides and fronts it with the Redis cache.
func BuildCatalogSource(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (*catalog.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		src *catalog.FileSource
		err error
	)
	if path := strings.TrimSpace(cfg.CatalogPath); path != "" {
		src, err = catalog.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load catalog: %w", err)
		}
		logger.Info("catalog loaded", "path", path)
	} else {
		src = catalog.Default()
	}
	if err := src.WithBaseDefaults(cfg.DefaultTaxRate, cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("bootstrap: catalog defaults: %w", err)
	}
	if redisClient == nil {
		logger.Info("catalog cache disabled")
	}
	return catalog.NewStore(src, redisClient, cfg.CatalogCacheTTL, logger), nil
}

// BuildRules returns the second pair program, falling back to the standard
// percentages for unset or out-of-range values.
func BuildRules(cfg *appconfig.Config, logger *logging.Logger) pricing.Rules {
	rules := pricing.DefaultRules()
	if cfg == nil {
		return rules
	}
	if logger == nil {
		logger = logging.Default()
	}
	if validPercent(cfg.SecondPairSameDay) {
		rules.SameDayPercent = cfg.SecondPairSameDay
	} else {
		logger.Warn("ignoring invalid same day percent", "value", cfg.SecondPairSameDay)
	}
	if validPercent(cfg.SecondPairThirty) {
		rules.ThirtyDayPercent = cfg.SecondPairThirty
	} else {
		logger.Warn("ignoring invalid thirty day percent", "value", cfg.SecondPairThirty)
	}
	if cfg.SecondPairMaxDays > 0 {
		rules.WindowDays = cfg.SecondPairMaxDays
	}
	return rules
}

func validPercent(p int) bool {
	return p >= 0 && p <= 100
}
