package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

// CacheStore abstracts the Redis-backed cache repository.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService layers read-through caching with request coalescing over the
// cache repository. Concurrent requests for the same key share one
// computation; results are cached, errors never are.
type CacheService struct {
	store   CacheStore
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
	group   singleflight.Group
}

// NewCacheService constructs the cache service.
func NewCacheService(store CacheStore, metrics *MetricsService, logger *zap.Logger, enabled bool) *CacheService {
	return &CacheService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		enabled: enabled && store != nil,
	}
}

// Enabled reports whether caching is active.
func (s *CacheService) Enabled() bool {
	return s.enabled
}

// GetOrCompute returns the cached result for key, or runs compute and caches
// its result for ttl. The second return value reports whether the result was
// served from cache. Cache backend failures degrade to a recompute rather
// than failing the request.
func (s *CacheService) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (*models.MetricResult, error)) (*models.MetricResult, bool, error) {
	if s.enabled {
		start := time.Now()
		var cached models.MetricResult
		err := s.store.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache lookup failed, recomputing", zap.String("key", key), zap.Error(err))
		}
	}

	// Coalesce concurrent misses on the same key into one computation. The
	// first caller's context drives the shared compute.
	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if s.enabled {
			if setErr := s.store.Set(ctx, key, result, ttl); setErr != nil {
				s.logger.Warn("cache store failed", zap.String("key", key), zap.Error(setErr))
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}

	return value.(*models.MetricResult), false, nil
}

// InvalidateMetric removes all cached variants of a single metric.
func (s *CacheService) InvalidateMetric(ctx context.Context, metricID string) error {
	if !s.enabled {
		return nil
	}
	return s.store.DeleteByPattern(ctx, "metric:"+metricID+":*")
}

// InvalidateAll removes every cached metric entry.
func (s *CacheService) InvalidateAll(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	return s.store.DeleteByPattern(ctx, "metric:*")
}
