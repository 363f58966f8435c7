package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEFAULT_TAX_RATE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DefaultTaxRate != "" {
		t.Fatalf("expected catalog tax rate to be used by default, got %s", cfg.DefaultTaxRate)
	}
	if cfg.SecondPairSameDay != 50 || cfg.SecondPairThirty != 30 || cfg.SecondPairMaxDays != 30 {
		t.Fatalf("unexpected second pair defaults: %d/%d/%d", cfg.SecondPairSameDay, cfg.SecondPairThirty, cfg.SecondPairMaxDays)
	}
	if cfg.CatalogCacheTTL != 15*time.Minute {
		t.Fatalf("expected default catalog ttl, got %s", cfg.CatalogCacheTTL)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.UsesAWS() {
		t.Fatalf("expected AWS components disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("DEFAULT_TAX_RATE", "0.0725")
	t.Setenv("SECOND_PAIR_WINDOW_DAYS", "45")
	t.Setenv("CATALOG_CACHE_TTL", "1h")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://pos.example.com, ,http://localhost:3000")
	t.Setenv("QUOTE_ARCHIVE_BUCKET", "quotes-archive")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.DefaultTaxRate != "0.0725" {
		t.Fatalf("expected tax override, got %s", cfg.DefaultTaxRate)
	}
	if cfg.SecondPairMaxDays != 45 {
		t.Fatalf("expected window override, got %d", cfg.SecondPairMaxDays)
	}
	if cfg.CatalogCacheTTL != time.Hour {
		t.Fatalf("expected ttl override, got %s", cfg.CatalogCacheTTL)
	}
	if cfg.RateLimitPerSecond != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitPerSecond)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.UsesAWS() {
		t.Fatalf("expected archive bucket to enable AWS")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "lots")
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	cfg := Load()
	if cfg.OutboxBatchSize != 25 {
		t.Fatalf("expected default batch size, got %d", cfg.OutboxBatchSize)
	}
	if cfg.OutboxPollInterval != 2*time.Second {
		t.Fatalf("expected default poll interval, got %s", cfg.OutboxPollInterval)
	}
}
