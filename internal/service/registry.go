package service

import (
	"context"
	"time"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/pkg/config"
)

// RecordStore is the read-only record access surface the catalog computes
// from.
type RecordStore interface {
	Accounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, error)
	GradeRecords(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, error)
	TelemetryEvents(ctx context.Context, filter models.TelemetryFilter) ([]models.TelemetryEvent, error)
	CaseStudies(ctx context.Context) ([]models.CaseStudy, error)
}

// ComputeFunc produces a metric result from scoped filters. Implementations
// receive filters already normalised by the scoping layer and must be
// deterministic for a given record set and filter set.
type ComputeFunc func(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error)

// MetricDefinition is one declarative catalog entry. Computation, caching
// policy and role visibility all hang off the definition; handlers and
// services stay metric-agnostic.
type MetricDefinition struct {
	ID                string
	Label             string
	Class             models.RecordClass
	Kind              models.MetricKind
	Unit              string
	DefaultWindow     string
	Windows           []string
	CacheTTL          time.Duration
	Roles             []models.UserRole
	SupportsThreshold bool
	DefaultPercentile float64
	DefaultLimit      int
	SupportsSearch    bool
	Compute           ComputeFunc
}

// VisibleTo reports whether the metric is exposed to the given role.
func (d *MetricDefinition) VisibleTo(role models.UserRole) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AllowsWindow reports whether the metric accepts the given window token.
func (d *MetricDefinition) AllowsWindow(window string) bool {
	for _, w := range d.Windows {
		if w == window {
			return true
		}
	}
	return false
}

// Info converts the definition into its discovery representation.
func (d *MetricDefinition) Info() models.MetricInfo {
	return models.MetricInfo{
		ID:          d.ID,
		Label:       d.Label,
		Class:       d.Class,
		Kind:        d.Kind,
		Windows:     d.Windows,
		CacheTTLSec: int(d.CacheTTL / time.Second),
		Roles:       d.Roles,
	}
}

// Registry holds the metric catalog in a stable declaration order.
type Registry struct {
	defs []*MetricDefinition
	byID map[string]*MetricDefinition
}

// Lookup returns the definition for the given metric id.
func (r *Registry) Lookup(id string) (*MetricDefinition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// All returns the catalog in declaration order.
func (r *Registry) All() []*MetricDefinition {
	return r.defs
}

var (
	rolesStaff     = []models.UserRole{models.RoleAdmin, models.RoleFaculty}
	rolesGrades    = []models.UserRole{models.RoleAdmin, models.RoleFaculty, models.RoleStudent}
	rolesTelemetry = []models.UserRole{models.RoleAdmin, models.RoleDeveloper}

	allWindows = []string{models.WindowToday, models.Window7d, models.Window30d, models.Window90d, models.WindowAll, models.WindowCustom}
)

// NewRegistry builds the metric catalog. Cache TTLs come from the engine
// configuration, with per-metric overrides honoured.
func NewRegistry(cfg config.EngineConfig) *Registry {
	ttl := func(id string) time.Duration {
		if override, ok := cfg.CacheTTLOverrides[id]; ok {
			return override
		}
		return cfg.DefaultCacheTTL
	}

	defs := []*MetricDefinition{
		// Account metrics.
		{ID: "accounts.total", Label: "Registered accounts", Class: models.ClassAccounts, Kind: models.KindValue, Unit: "accounts", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeAccountsTotal},
		{ID: "accounts.students_total", Label: "Registered students", Class: models.ClassAccounts, Kind: models.KindValue, Unit: "accounts", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeStudentsTotal},
		{ID: "accounts.by_role", Label: "Accounts by role", Class: models.ClassAccounts, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeAccountsByRole},
		{ID: "accounts.by_department", Label: "Accounts by department", Class: models.ClassAccounts, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeAccountsByDepartment},
		{ID: "accounts.by_cohort", Label: "Accounts by cohort", Class: models.ClassAccounts, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeAccountsByCohort},
		{ID: "accounts.active_students", Label: "Active students", Class: models.ClassAccounts, Kind: models.KindValue, Unit: "accounts", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesStaff, Compute: computeActiveStudents},
		{ID: "accounts.registrations_trend", Label: "Registrations over time", Class: models.ClassAccounts, Kind: models.KindSeries, Unit: "accounts", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesStaff, Compute: computeRegistrationsTrend},
		{ID: "accounts.registrations_trend_smoothed", Label: "Registrations over time (rolling mean)", Class: models.ClassAccounts, Kind: models.KindSeries, Unit: "accounts", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesStaff, Compute: computeRegistrationsTrendSmoothed},
		{ID: "accounts.student_directory", Label: "Student directory", Class: models.ClassAccounts, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, DefaultLimit: 100, SupportsSearch: true, Compute: computeStudentDirectory},

		// Grade metrics.
		{ID: "grades.submissions_total", Label: "Submissions", Class: models.ClassGrades, Kind: models.KindValue, Unit: "submissions", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeSubmissionsTotal},
		{ID: "grades.graded_total", Label: "Graded submissions", Class: models.ClassGrades, Kind: models.KindValue, Unit: "submissions", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeGradedTotal},
		{ID: "grades.graded_rate", Label: "Graded rate", Class: models.ClassGrades, Kind: models.KindValue, Unit: "ratio", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeGradedRate},
		{ID: "grades.overall_mean", Label: "Mean score", Class: models.ClassGrades, Kind: models.KindValue, Unit: "score", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeOverallMean},
		{ID: "grades.overall_min", Label: "Lowest score", Class: models.ClassGrades, Kind: models.KindValue, Unit: "score", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeOverallMin},
		{ID: "grades.overall_max", Label: "Highest score", Class: models.ClassGrades, Kind: models.KindValue, Unit: "score", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeOverallMax},
		{ID: "grades.score_percentile", Label: "Score percentile", Class: models.ClassGrades, Kind: models.KindValue, Unit: "score", DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, DefaultPercentile: 0.5, Compute: computeScorePercentile},
		{ID: "grades.letter_distribution", Label: "Letter grade distribution", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeLetterDistribution},
		{ID: "grades.mean_by_case_study", Label: "Mean score by case study", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeMeanByCaseStudy},
		{ID: "grades.case_study_completion", Label: "Case study completion", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeCaseStudyCompletion},
		{ID: "grades.mean_by_student", Label: "Mean score by student", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeMeanByStudent},
		{ID: "grades.mean_by_department", Label: "Mean score by department", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeMeanByDepartment},
		{ID: "grades.mean_by_cohort", Label: "Mean score by cohort", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, Compute: computeMeanByCohort},
		{ID: "grades.top_performers", Label: "Top performers", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, DefaultLimit: 10, Compute: computeTopPerformers},
		{ID: "grades.at_risk_students", Label: "At-risk students", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesStaff, SupportsThreshold: true, Compute: computeAtRiskStudents},
		{ID: "grades.student_summary", Label: "Student performance summary", Class: models.ClassGrades, Kind: models.KindTable, DefaultWindow: models.WindowAll, Windows: allWindows, Roles: rolesGrades, Compute: computeStudentSummary},
		{ID: "grades.submissions_trend", Label: "Submissions over time", Class: models.ClassGrades, Kind: models.KindSeries, Unit: "submissions", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesGrades, Compute: computeSubmissionsTrend},
		{ID: "grades.mean_score_trend", Label: "Mean score over time", Class: models.ClassGrades, Kind: models.KindSeries, Unit: "score", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesGrades, Compute: computeMeanScoreTrend},
		{ID: "grades.mean_score_trend_smoothed", Label: "Mean score over time (rolling mean)", Class: models.ClassGrades, Kind: models.KindSeries, Unit: "score", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesGrades, Compute: computeMeanScoreTrendSmoothed},

		// Telemetry metrics.
		{ID: "telemetry.requests_total", Label: "Requests", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "requests", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeRequestsTotal},
		{ID: "telemetry.error_count", Label: "Errors", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "requests", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeErrorCount},
		{ID: "telemetry.error_rate", Label: "Error rate", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "ratio", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeErrorRate},
		{ID: "telemetry.uptime_ratio", Label: "Uptime", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "ratio", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeUptimeRatio},
		{ID: "telemetry.latency_mean", Label: "Mean latency", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "ms", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeLatencyMean},
		{ID: "telemetry.latency_percentile", Label: "Latency percentile", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "ms", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, DefaultPercentile: 0.95, Compute: computeLatencyPercentile},
		{ID: "telemetry.requests_trend", Label: "Requests over time", Class: models.ClassTelemetry, Kind: models.KindSeries, Unit: "requests", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeRequestsTrend},
		{ID: "telemetry.error_rate_trend", Label: "Error rate over time", Class: models.ClassTelemetry, Kind: models.KindSeries, Unit: "ratio", DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeErrorRateTrend},
		{ID: "telemetry.latency_by_route", Label: "Latency by route", Class: models.ClassTelemetry, Kind: models.KindTable, DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeLatencyByRoute},
		{ID: "telemetry.requests_by_service", Label: "Requests by service", Class: models.ClassTelemetry, Kind: models.KindTable, DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeRequestsByService},
		{ID: "telemetry.ai_requests_total", Label: "AI requests", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "requests", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeAIRequestsTotal},
		{ID: "telemetry.ai_tokens_total", Label: "AI tokens consumed", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "tokens", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeAITokensTotal},
		{ID: "telemetry.ai_cost_estimate", Label: "Estimated AI spend", Class: models.ClassTelemetry, Kind: models.KindValue, Unit: "usd", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeAICostEstimate},
		{ID: "telemetry.ai_requests_by_model", Label: "AI requests by model", Class: models.ClassTelemetry, Kind: models.KindTable, DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeAIRequestsByModel},
		{ID: "telemetry.ai_tokens_trend", Label: "AI tokens over time", Class: models.ClassTelemetry, Kind: models.KindSeries, Unit: "tokens", DefaultWindow: models.Window30d, Windows: allWindows, Roles: rolesTelemetry, Compute: computeAITokensTrend},
		{ID: "telemetry.error_log", Label: "Recent errors", Class: models.ClassTelemetry, Kind: models.KindTable, DefaultWindow: models.Window7d, Windows: allWindows, Roles: rolesTelemetry, DefaultLimit: cfg.ErrorLogLimit, Compute: computeErrorLog},
	}

	byID := make(map[string]*MetricDefinition, len(defs))
	for _, def := range defs {
		def.CacheTTL = ttl(def.ID)
		byID[def.ID] = def
	}

	return &Registry{defs: defs, byID: byID}
}
