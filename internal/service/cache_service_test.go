package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

type memoryCacheStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMemoryCacheStore() *memoryCacheStore {
	return &memoryCacheStore{entries: make(map[string][]byte)}
}

func (s *memoryCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *memoryCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = raw
	s.sets++
	return nil
}

func (s *memoryCacheStore) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *memoryCacheStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestCacheServiceGetOrComputeCachesResult(t *testing.T) {
	store := newMemoryCacheStore()
	svc := NewCacheService(store, nil, zap.NewNop(), true)

	var computes int
	compute := func(ctx context.Context) (*models.MetricResult, error) {
		computes++
		return &models.MetricResult{MetricID: "grades.overall_mean", Kind: models.KindValue}, nil
	}

	result, fromCache, err := svc.GetOrCompute(context.Background(), "metric:grades.overall_mean:w=all", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "grades.overall_mean", result.MetricID)
	assert.Equal(t, 1, computes)

	result, fromCache, err = svc.GetOrCompute(context.Background(), "metric:grades.overall_mean:w=all", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, "grades.overall_mean", result.MetricID)
	assert.Equal(t, 1, computes, "second call must be served from cache")
	assert.Equal(t, 1, store.sets)
}

func TestCacheServiceNeverCachesErrors(t *testing.T) {
	store := newMemoryCacheStore()
	svc := NewCacheService(store, nil, zap.NewNop(), true)

	var computes int
	compute := func(ctx context.Context) (*models.MetricResult, error) {
		computes++
		return nil, errors.New("record store down")
	}

	_, _, err := svc.GetOrCompute(context.Background(), "metric:accounts.total:w=all", time.Minute, compute)
	require.Error(t, err)
	assert.Equal(t, 0, store.len())

	_, _, err = svc.GetOrCompute(context.Background(), "metric:accounts.total:w=all", time.Minute, compute)
	require.Error(t, err)
	assert.Equal(t, 2, computes, "failed computations must be retried, not cached")
}

func TestCacheServiceCoalescesConcurrentMisses(t *testing.T) {
	svc := NewCacheService(nil, nil, zap.NewNop(), false)

	release := make(chan struct{})
	var computes int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := svc.GetOrCompute(context.Background(), "metric:grades.overall_mean:w=all", time.Minute, func(ctx context.Context) (*models.MetricResult, error) {
				atomic.AddInt32(&computes, 1)
				<-release
				return &models.MetricResult{MetricID: "grades.overall_mean"}, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "grades.overall_mean", result.MetricID)
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&computes), "concurrent identical requests must share one computation")
}

func TestCacheServiceInvalidation(t *testing.T) {
	store := newMemoryCacheStore()
	svc := NewCacheService(store, nil, zap.NewNop(), true)

	seed := func(key string) {
		_, _, err := svc.GetOrCompute(context.Background(), key, time.Minute, func(ctx context.Context) (*models.MetricResult, error) {
			return &models.MetricResult{MetricID: key}, nil
		})
		require.NoError(t, err)
	}
	seed("metric:grades.overall_mean:w=all")
	seed("metric:grades.overall_mean:w=7d")
	seed("metric:accounts.total:w=all")
	require.Equal(t, 3, store.len())

	require.NoError(t, svc.InvalidateMetric(context.Background(), "grades.overall_mean"))
	assert.Equal(t, 1, store.len())

	require.NoError(t, svc.InvalidateAll(context.Background()))
	assert.Equal(t, 0, store.len())
}

func TestCacheServiceDisabledAlwaysComputes(t *testing.T) {
	store := newMemoryCacheStore()
	svc := NewCacheService(store, nil, zap.NewNop(), false)

	var computes int
	for i := 0; i < 2; i++ {
		_, fromCache, err := svc.GetOrCompute(context.Background(), "metric:accounts.total:w=all", time.Minute, func(ctx context.Context) (*models.MetricResult, error) {
			computes++
			return &models.MetricResult{MetricID: "accounts.total"}, nil
		})
		require.NoError(t, err)
		assert.False(t, fromCache)
	}
	assert.Equal(t, 2, computes)
	assert.Equal(t, 0, store.len())
}
