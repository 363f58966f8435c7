package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visionpos/vision-pos/pkg/logging"
)

// Source resolves the catalog for a location.
type Source interface {
	Catalog(ctx context.Context, locationID string) (*Catalog, error)
}

// Store caches location catalogs in Redis in front of a Source.
// A nil Redis client disables caching.
type Store struct {
	source Source
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewStore creates a caching catalog store.
func NewStore(source Source, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Store {
	if source == nil {
		panic("catalog: source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{
		source: source,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *Store) key(locationID string) string {
	return fmt.Sprintf("catalog:v1:%s", locationID)
}

// Catalog returns the cached catalog for a location, loading it on a miss.
// Redis failures fall back to the source.
func (s *Store) Catalog(ctx context.Context, locationID string) (*Catalog, error) {
	if s.redis == nil {
		return s.source.Catalog(ctx, locationID)
	}

	data, err := s.redis.Get(ctx, s.key(locationID)).Bytes()
	switch {
	case err == nil:
		var cat Catalog
		jsonErr := json.Unmarshal(data, &cat)
		if jsonErr == nil {
			return &cat, nil
		}
		s.logger.Warn("discarding unreadable cached catalog", "location_id", locationID, "error", jsonErr)
	case err != redis.Nil:
		s.logger.Warn("catalog cache unavailable", "location_id", locationID, "error", err)
		return s.source.Catalog(ctx, locationID)
	}

	cat, err := s.source.Catalog(ctx, locationID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(cat)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(locationID), payload, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to cache catalog", "location_id", locationID, "error", err)
	}
	return cat, nil
}

// Invalidate drops the cached catalog for a location.
func (s *Store) Invalidate(ctx context.Context, locationID string) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(locationID)).Err(); err != nil {
		return fmt.Errorf("catalog: invalidate %s: %w", locationID, err)
	}
	return nil
}
