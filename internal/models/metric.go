package models

import (
	"fmt"
	"strings"
	"time"
)

// RecordClass identifies the record family a metric reads.
type RecordClass string

const (
	ClassAccounts  RecordClass = "accounts"
	ClassGrades    RecordClass = "grades"
	ClassTelemetry RecordClass = "telemetry"
)

// MetricKind identifies the shape of a metric result.
type MetricKind string

const (
	KindValue  MetricKind = "value"
	KindSeries MetricKind = "series"
	KindTable  MetricKind = "table"
)

// Time window tokens accepted by metric queries.
const (
	WindowToday  = "today"
	Window7d     = "7d"
	Window30d    = "30d"
	Window90d    = "90d"
	WindowAll    = "all"
	WindowCustom = "custom"
)

// Granularity selects calendar-aligned bucket sizes for series metrics.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// MetricParams are the caller-supplied parameters of a metric request,
// validated against the definition before any data is pulled.
type MetricParams struct {
	Window      string      `validate:"omitempty,oneof=today 7d 30d 90d all custom"`
	From        *time.Time  `validate:"-"`
	To          *time.Time  `validate:"-"`
	OwnerID     string      `validate:"omitempty,max=64"`
	Department  string      `validate:"omitempty,max=128"`
	Cohort      string      `validate:"omitempty,max=128"`
	CaseStudyID string      `validate:"omitempty,max=64"`
	Granularity Granularity `validate:"omitempty,oneof=hour day week"`
	Threshold   *float64    `validate:"omitempty,gte=0,lte=100"`
	Percentile  *float64    `validate:"omitempty,gte=0,lte=1"`
	Limit       int         `validate:"omitempty,gte=1,lte=500"`
	Search      string      `validate:"omitempty,max=128"`
}

// EffectiveFilters is the fully resolved, role-scoped filter set a metric is
// computed under. It is produced by the scoping layer; the catalog never sees
// unscoped caller input.
type EffectiveFilters struct {
	Window      string      `json:"window"`
	From        *time.Time  `json:"from,omitempty"`
	To          *time.Time  `json:"to,omitempty"`
	OwnerID     string      `json:"owner_id,omitempty"`
	Department  string      `json:"department,omitempty"`
	Cohort      string      `json:"cohort,omitempty"`
	CaseStudyID string      `json:"case_study_id,omitempty"`
	Granularity Granularity `json:"granularity,omitempty"`
	Threshold   float64     `json:"threshold,omitempty"`
	Percentile  float64     `json:"percentile,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	Search      string      `json:"search,omitempty"`
}

// CacheKey returns a stable serialization of (metric id, filters). Fields are
// emitted in a fixed order and empty fields are skipped, so equivalent
// requests collapse to a single cache entry.
func (f EffectiveFilters) CacheKey(metricID string) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString("metric:")
	b.WriteString(metricID)
	write := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(value, ":", "|"))
	}
	write("w", f.Window)
	write("from", formatCacheTime(f.From))
	write("to", formatCacheTime(f.To))
	write("own", f.OwnerID)
	write("dep", f.Department)
	write("coh", f.Cohort)
	write("cs", f.CaseStudyID)
	write("g", string(f.Granularity))
	if f.Threshold > 0 {
		write("thr", fmt.Sprintf("%g", f.Threshold))
	}
	if f.Percentile > 0 {
		write("p", fmt.Sprintf("%g", f.Percentile))
	}
	if f.Limit > 0 {
		write("lim", fmt.Sprintf("%d", f.Limit))
	}
	write("q", strings.ToLower(f.Search))
	return b.String()
}

func formatCacheTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// SeriesPoint is one calendar-aligned bucket of a series metric.
type SeriesPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Value       *float64  `json:"value"`
	Count       int       `json:"count"`
}

// Table is a deterministically ordered tabular metric result.
type Table struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

// MetricResult is the single result shape crossing the caller boundary.
// Exactly one of Value/Series/Table is populated according to Kind; a value
// metric with no underlying data sets Undefined instead of reporting zero.
type MetricResult struct {
	MetricID   string        `json:"metric_id"`
	Label      string        `json:"label"`
	Kind       MetricKind    `json:"kind"`
	Value      *float64      `json:"value,omitempty"`
	Undefined  bool          `json:"undefined,omitempty"`
	Unit       string        `json:"unit,omitempty"`
	Series     []SeriesPoint `json:"series,omitempty"`
	Table      *Table        `json:"table,omitempty"`
	ComputedAt time.Time     `json:"computed_at"`
	FromCache  bool          `json:"from_cache"`
}

// MetricInfo describes a catalog entry for discovery endpoints.
type MetricInfo struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Class       RecordClass `json:"class"`
	Kind        MetricKind  `json:"kind"`
	Windows     []string    `json:"windows"`
	CacheTTLSec int         `json:"cache_ttl_seconds"`
	Roles       []UserRole  `json:"roles"`
}

// StudentAggregate summarises a student's graded work for threshold and badge
// evaluation.
type StudentAggregate struct {
	AccountID           string   `json:"account_id"`
	FullName            string   `json:"full_name,omitempty"`
	Email               string   `json:"email,omitempty"`
	Submissions         int      `json:"submissions"`
	GradedSubmissions   int      `json:"graded_submissions"`
	DistinctCaseStudies int      `json:"distinct_case_studies"`
	MeanScore           *float64 `json:"mean_score"`
	MaxScore            *float64 `json:"max_score"`
}

// Badge is a pure, re-evaluated-on-demand classification. Badges are never
// stored as earned-once state.
type Badge struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
