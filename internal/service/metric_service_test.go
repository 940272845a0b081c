package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/stats"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

type stubRecordStore struct {
	accounts []models.Account
	grades   []models.GradeRecord
	events   []models.TelemetryEvent
	studies  []models.CaseStudy
	err      error

	accountCalls int
	gradeCalls   int
	eventCalls   int
}

func (s *stubRecordStore) Accounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, error) {
	s.accountCalls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.ID != "" && a.ID != filter.ID {
			continue
		}
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *stubRecordStore) GradeRecords(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, error) {
	s.gradeCalls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.GradeRecord, 0, len(s.grades))
	for _, g := range s.grades {
		if filter.OwnerID != "" && g.AccountID != filter.OwnerID {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *stubRecordStore) TelemetryEvents(ctx context.Context, filter models.TelemetryFilter) ([]models.TelemetryEvent, error) {
	s.eventCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

func (s *stubRecordStore) CaseStudies(ctx context.Context) ([]models.CaseStudy, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.studies, nil
}

func newTestMetricService(store RecordStore) (*MetricService, *memoryCacheStore) {
	cfg := testEngineConfig()
	logger := zap.NewNop()
	metrics := NewMetricsService()
	cacheStore := newMemoryCacheStore()
	cache := NewCacheService(cacheStore, metrics, logger, true)
	registry := NewRegistry(cfg)
	scope := NewScopeService(cfg.AtRiskThreshold, logger)
	return NewMetricService(registry, scope, cache, metrics, store, cfg, logger), cacheStore
}

func gradeRecord(id, accountID, caseStudyID string, score *float64, submittedAt time.Time) models.GradeRecord {
	record := models.GradeRecord{
		ID:          id,
		AccountID:   accountID,
		CaseStudyID: caseStudyID,
		FinalScore:  score,
		SubmittedAt: submittedAt,
	}
	if score != nil {
		gradedAt := submittedAt.Add(time.Hour)
		record.GradedAt = &gradedAt
	}
	return record
}

func TestResolveMeanExcludesUngraded(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &stubRecordStore{grades: []models.GradeRecord{
		gradeRecord("gr-1", "stu-1", "cs-1", stats.Float(92), base),
		gradeRecord("gr-2", "stu-2", "cs-1", nil, base.Add(time.Hour)),
		gradeRecord("gr-3", "stu-2", "cs-2", stats.Float(58), base.Add(2*time.Hour)),
	}}
	svc, _ := newTestMetricService(store)
	admin := claimsFor(models.RoleAdmin, "adm-1")

	result, err := svc.Resolve(context.Background(), "grades.overall_mean", models.MetricParams{}, admin)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.False(t, result.Undefined)
	require.NotNil(t, result.Value)
	assert.Equal(t, 75.0, *result.Value)
	assert.Equal(t, 1, store.gradeCalls)

	// Identical request is served from cache without touching the store.
	cached, err := svc.Resolve(context.Background(), "grades.overall_mean", models.MetricParams{}, admin)
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	require.NotNil(t, cached.Value)
	assert.Equal(t, 75.0, *cached.Value)
	assert.Equal(t, 1, store.gradeCalls)
}

func TestResolveUndefinedWhenNoGrades(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &stubRecordStore{grades: []models.GradeRecord{
		gradeRecord("gr-1", "stu-1", "cs-1", nil, base),
	}}
	svc, _ := newTestMetricService(store)

	result, err := svc.Resolve(context.Background(), "grades.overall_mean", models.MetricParams{}, claimsFor(models.RoleAdmin, "adm-1"))
	require.NoError(t, err)
	assert.True(t, result.Undefined)
	assert.Nil(t, result.Value)
}

func TestResolveStudentCrossOwnerNotCached(t *testing.T) {
	store := &stubRecordStore{}
	svc, cacheStore := newTestMetricService(store)

	_, err := svc.Resolve(context.Background(), "grades.overall_mean", models.MetricParams{OwnerID: "stu-2"}, claimsFor(models.RoleStudent, "stu-1"))
	requireCode(t, err, appErrors.ErrForbidden.Code)
	assert.Equal(t, 0, store.gradeCalls)
	assert.Equal(t, 0, cacheStore.len())
}

func TestResolveValidationFailureNotCached(t *testing.T) {
	store := &stubRecordStore{}
	svc, cacheStore := newTestMetricService(store)

	bad := 1.5
	_, err := svc.Resolve(context.Background(), "grades.score_percentile", models.MetricParams{Percentile: &bad}, claimsFor(models.RoleAdmin, "adm-1"))
	requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, 0, store.gradeCalls)
	assert.Equal(t, 0, cacheStore.len())
}

func TestResolveUnknownMetric(t *testing.T) {
	svc, _ := newTestMetricService(&stubRecordStore{})

	_, err := svc.Resolve(context.Background(), "no.such.metric", models.MetricParams{}, claimsFor(models.RoleAdmin, "adm-1"))
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestResolveStoreFailureIsDataUnavailable(t *testing.T) {
	store := &stubRecordStore{err: context.DeadlineExceeded}
	svc, cacheStore := newTestMetricService(store)

	_, err := svc.Resolve(context.Background(), "grades.overall_mean", models.MetricParams{}, claimsFor(models.RoleAdmin, "adm-1"))
	requireCode(t, err, appErrors.ErrDataUnavailable.Code)
	assert.Equal(t, 0, cacheStore.len())
}

func TestResolveAtRiskExcludesZeroGraded(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &stubRecordStore{
		accounts: []models.Account{
			{ID: "stu-1", FullName: "Student One", Role: models.RoleStudent},
			{ID: "stu-2", FullName: "Student Two", Role: models.RoleStudent},
		},
		grades: []models.GradeRecord{
			gradeRecord("gr-1", "stu-1", "cs-1", stats.Float(55), base),
			gradeRecord("gr-2", "stu-2", "cs-1", nil, base.Add(time.Hour)),
		},
	}
	svc, _ := newTestMetricService(store)

	result, err := svc.Resolve(context.Background(), "grades.at_risk_students", models.MetricParams{}, claimsFor(models.RoleFaculty, "fac-1"))
	require.NoError(t, err)
	require.NotNil(t, result.Table)
	require.Len(t, result.Table.Rows, 1, "absence of graded work is not risk")
	assert.Equal(t, "stu-1", result.Table.Rows[0]["account_id"])
}

func TestResolveLetterDistributionBoundaries(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &stubRecordStore{grades: []models.GradeRecord{
		gradeRecord("gr-1", "stu-1", "cs-1", stats.Float(90), base),
		gradeRecord("gr-2", "stu-2", "cs-1", stats.Float(89.999), base.Add(time.Hour)),
		gradeRecord("gr-3", "stu-3", "cs-1", stats.Float(12), base.Add(2*time.Hour)),
	}}
	svc, _ := newTestMetricService(store)

	result, err := svc.Resolve(context.Background(), "grades.letter_distribution", models.MetricParams{}, claimsFor(models.RoleAdmin, "adm-1"))
	require.NoError(t, err)
	require.NotNil(t, result.Table)

	counts := make(map[string]int)
	for _, row := range result.Table.Rows {
		counts[row["letter"].(string)] = row["count"].(int)
	}
	assert.Equal(t, 1, counts["A"], "an exact 90 is an A")
	assert.Equal(t, 1, counts["B"])
	assert.Equal(t, 1, counts["F"])
	assert.Equal(t, 0, counts["C"])
}

func TestResolveUptimeUndefinedWithoutTraffic(t *testing.T) {
	svc, _ := newTestMetricService(&stubRecordStore{})

	result, err := svc.Resolve(context.Background(), "telemetry.uptime_ratio", models.MetricParams{}, claimsFor(models.RoleDeveloper, "dev-1"))
	require.NoError(t, err)
	assert.True(t, result.Undefined, "no traffic is not perfect uptime")
}

func TestCatalogFiltersByRole(t *testing.T) {
	svc, _ := newTestMetricService(&stubRecordStore{})

	for _, info := range svc.Catalog(claimsFor(models.RoleStudent, "stu-1")) {
		assert.Equal(t, models.ClassGrades, info.Class, "students only see grade metrics, got %s", info.ID)
	}
	for _, info := range svc.Catalog(claimsFor(models.RoleDeveloper, "dev-1")) {
		assert.Equal(t, models.ClassTelemetry, info.Class, "developers only see telemetry metrics, got %s", info.ID)
	}
	admin := svc.Catalog(claimsFor(models.RoleAdmin, "adm-1"))
	developer := svc.Catalog(claimsFor(models.RoleDeveloper, "dev-1"))
	assert.Greater(t, len(admin), len(developer))
}

func TestInvalidateMetricForcesRecompute(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &stubRecordStore{grades: []models.GradeRecord{
		gradeRecord("gr-1", "stu-1", "cs-1", stats.Float(80), base),
	}}
	svc, _ := newTestMetricService(store)
	admin := claimsFor(models.RoleAdmin, "adm-1")

	_, err := svc.Resolve(context.Background(), "grades.overall_mean", models.MetricParams{}, admin)
	require.NoError(t, err)
	require.Equal(t, 1, store.gradeCalls)

	require.NoError(t, svc.Invalidate(context.Background(), "grades.overall_mean"))

	result, err := svc.Resolve(context.Background(), "grades.overall_mean", models.MetricParams{}, admin)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, store.gradeCalls)

	err = svc.Invalidate(context.Background(), "no.such.metric")
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestResolveTableRejectsNonTableMetrics(t *testing.T) {
	svc, _ := newTestMetricService(&stubRecordStore{})

	_, err := svc.ResolveTable(context.Background(), "grades.overall_mean", models.MetricParams{}, claimsFor(models.RoleAdmin, "adm-1"))
	requireCode(t, err, appErrors.ErrValidation.Code)
}
