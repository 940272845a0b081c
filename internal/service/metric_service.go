package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/pkg/config"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

// MetricService is the resolution pipeline: validate, scope, consult the
// cache, compute, instrument. It is the only entry point handlers use to
// evaluate catalog metrics.
type MetricService struct {
	registry     *Registry
	scope        *ScopeService
	cache        *CacheService
	metrics      *MetricsService
	validate     *validator.Validate
	env          *computeEnv
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewMetricService constructs the metric service.
func NewMetricService(
	registry *Registry,
	scope *ScopeService,
	cache *CacheService,
	metrics *MetricsService,
	store RecordStore,
	engine config.EngineConfig,
	logger *zap.Logger,
) *MetricService {
	return &MetricService{
		registry: registry,
		scope:    scope,
		cache:    cache,
		metrics:  metrics,
		validate: validator.New(),
		env: &computeEnv{
			store:     store,
			metrics:   metrics,
			weekStart: engine.WeekStartDay,
			now:       func() time.Time { return time.Now().UTC() },
		},
		queryTimeout: engine.QueryTimeout,
		logger:       logger,
	}
}

// Catalog lists the metrics visible to the caller's role, in declaration
// order.
func (s *MetricService) Catalog(claims *models.JWTClaims) []models.MetricInfo {
	infos := make([]models.MetricInfo, 0)
	if claims == nil {
		return infos
	}
	for _, def := range s.registry.All() {
		if def.VisibleTo(claims.Role) {
			infos = append(infos, def.Info())
		}
	}
	return infos
}

// Resolve evaluates one metric for the caller. Validation and authorization
// failures surface before the cache is consulted and are never cached
// themselves; computed results are cached under the canonical filter key.
func (s *MetricService) Resolve(ctx context.Context, metricID string, params models.MetricParams, claims *models.JWTClaims) (*models.MetricResult, error) {
	def, ok := s.registry.Lookup(metricID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown metric "+metricID)
	}

	if err := s.validate.Struct(params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid metric parameters")
	}

	filters, err := s.scope.Scope(def, params, claims)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, fromCache, err := s.cache.GetOrCompute(ctx, filters.CacheKey(def.ID), def.CacheTTL, func(ctx context.Context) (*models.MetricResult, error) {
		return s.compute(ctx, def, filters)
	})
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveResolve(def.ID, outcome, time.Since(start))
	if err != nil {
		return nil, err
	}

	// The cached/coalesced result is shared between callers; copy before
	// stamping per-request state.
	out := *result
	out.FromCache = fromCache
	return &out, nil
}

// ResolveTable evaluates a metric and requires a tabular result, for export
// endpoints.
func (s *MetricService) ResolveTable(ctx context.Context, metricID string, params models.MetricParams, claims *models.JWTClaims) (*models.MetricResult, error) {
	def, ok := s.registry.Lookup(metricID)
	if ok && def.Kind != models.KindTable {
		return nil, appErrors.Clone(appErrors.ErrValidation, "metric "+metricID+" is not exportable; only table metrics export")
	}
	return s.Resolve(ctx, metricID, params, claims)
}

// Invalidate drops cached entries, either for one metric or the whole
// catalog when metricID is empty.
func (s *MetricService) Invalidate(ctx context.Context, metricID string) error {
	if metricID == "" {
		s.logger.Info("invalidating all cached metrics")
		return s.cache.InvalidateAll(ctx)
	}
	if _, ok := s.registry.Lookup(metricID); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown metric "+metricID)
	}
	s.logger.Info("invalidating cached metric", zap.String("metric", metricID))
	return s.cache.InvalidateMetric(ctx, metricID)
}

func (s *MetricService) compute(ctx context.Context, def *MetricDefinition, filters models.EffectiveFilters) (*models.MetricResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	result, err := def.Compute(cctx, s.env, def, filters)
	if err != nil {
		s.logger.Error("metric computation failed", zap.String("metric", def.ID), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrDataUnavailable.Code, appErrors.ErrDataUnavailable.Status, "record store query timed out")
		}
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataUnavailable.Code, appErrors.ErrDataUnavailable.Status, appErrors.ErrDataUnavailable.Message)
	}

	result.ComputedAt = s.env.now()
	return result, nil
}
