package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/pkg/config"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		AtRiskThreshold: 70,
		QueryTimeout:    time.Second,
		DefaultCacheTTL: time.Minute,
		WeekStartDay:    time.Monday,
		CacheEnabled:    true,
		ErrorLogLimit:   50,
	}
}

func claimsFor(role models.UserRole, userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed), "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code)
}

func TestScopeStudentBoundToOwnRecords(t *testing.T) {
	registry := NewRegistry(testEngineConfig())
	scope := NewScopeService(70, zap.NewNop())
	def, ok := registry.Lookup("grades.overall_mean")
	require.True(t, ok)

	filters, err := scope.Scope(def, models.MetricParams{}, claimsFor(models.RoleStudent, "stu-1"))
	require.NoError(t, err)
	assert.Equal(t, "stu-1", filters.OwnerID)

	// Requesting the own id explicitly is allowed and equivalent.
	same, err := scope.Scope(def, models.MetricParams{OwnerID: "stu-1"}, claimsFor(models.RoleStudent, "stu-1"))
	require.NoError(t, err)
	assert.Equal(t, filters.CacheKey(def.ID), same.CacheKey(def.ID))

	_, err = scope.Scope(def, models.MetricParams{OwnerID: "stu-2"}, claimsFor(models.RoleStudent, "stu-1"))
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestScopeDeveloperDeniedGradeMetrics(t *testing.T) {
	registry := NewRegistry(testEngineConfig())
	scope := NewScopeService(70, zap.NewNop())
	def, ok := registry.Lookup("grades.overall_mean")
	require.True(t, ok)

	_, err := scope.Scope(def, models.MetricParams{}, claimsFor(models.RoleDeveloper, "dev-1"))
	requireCode(t, err, appErrors.ErrForbidden.Code)

	telemetryDef, ok := registry.Lookup("telemetry.error_rate")
	require.True(t, ok)
	_, err = scope.Scope(telemetryDef, models.MetricParams{}, claimsFor(models.RoleDeveloper, "dev-1"))
	assert.NoError(t, err)
}

func TestScopeCustomWindowValidation(t *testing.T) {
	registry := NewRegistry(testEngineConfig())
	scope := NewScopeService(70, zap.NewNop())
	def, _ := registry.Lookup("grades.overall_mean")
	admin := claimsFor(models.RoleAdmin, "adm-1")

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := scope.Scope(def, models.MetricParams{Window: models.WindowCustom, From: &from}, admin)
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = scope.Scope(def, models.MetricParams{Window: models.WindowCustom, From: &to, To: &from}, admin)
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = scope.Scope(def, models.MetricParams{Window: models.Window7d, From: &from, To: &to}, admin)
	requireCode(t, err, appErrors.ErrValidation.Code)

	filters, err := scope.Scope(def, models.MetricParams{Window: models.WindowCustom, From: &from, To: &to}, admin)
	require.NoError(t, err)
	require.NotNil(t, filters.From)
	require.NotNil(t, filters.To)
	assert.True(t, filters.From.Before(*filters.To))
}

func TestScopeDefaultsAndCanonicalisation(t *testing.T) {
	registry := NewRegistry(testEngineConfig())
	scope := NewScopeService(70, zap.NewNop())
	admin := claimsFor(models.RoleAdmin, "adm-1")

	atRisk, _ := registry.Lookup("grades.at_risk_students")
	filters, err := scope.Scope(atRisk, models.MetricParams{}, admin)
	require.NoError(t, err)
	assert.Equal(t, 70.0, filters.Threshold)

	custom := 60.0
	filters, err = scope.Scope(atRisk, models.MetricParams{Threshold: &custom}, admin)
	require.NoError(t, err)
	assert.Equal(t, 60.0, filters.Threshold)

	percentile, _ := registry.Lookup("telemetry.latency_percentile")
	filters, err = scope.Scope(percentile, models.MetricParams{}, admin)
	require.NoError(t, err)
	assert.Equal(t, 0.95, filters.Percentile)

	// Identity dimensions never apply to telemetry, so supplying them does
	// not fragment the cache.
	withDept, err := scope.Scope(percentile, models.MetricParams{Department: "Medicine"}, admin)
	require.NoError(t, err)
	assert.Equal(t, filters.CacheKey(percentile.ID), withDept.CacheKey(percentile.ID))

	trend, _ := registry.Lookup("grades.submissions_trend")
	filters, err = scope.Scope(trend, models.MetricParams{Window: models.WindowToday}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.GranularityHour, filters.Granularity)

	filters, err = scope.Scope(trend, models.MetricParams{Window: models.Window90d}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.GranularityWeek, filters.Granularity)
}

func TestScopeErrorLogLimitDefault(t *testing.T) {
	registry := NewRegistry(testEngineConfig())
	scope := NewScopeService(70, zap.NewNop())
	def, _ := registry.Lookup("telemetry.error_log")

	filters, err := scope.Scope(def, models.MetricParams{}, claimsFor(models.RoleDeveloper, "dev-1"))
	require.NoError(t, err)
	assert.Equal(t, 50, filters.Limit)

	filters, err = scope.Scope(def, models.MetricParams{Limit: 10}, claimsFor(models.RoleDeveloper, "dev-1"))
	require.NoError(t, err)
	assert.Equal(t, 10, filters.Limit)
}
