package service

import (
	"context"
	"time"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/stats"
)

// rollingWindowSize is the span of the smoothed trend variants, in buckets.
const rollingWindowSize = 7

// computeEnv carries the dependencies compute functions need. A single env is
// shared across the catalog; compute functions never hold state of their own.
type computeEnv struct {
	store     RecordStore
	metrics   *MetricsService
	weekStart time.Weekday
	now       func() time.Time
}

// timeRange resolves a window token into concrete half-open [from, to)
// bounds. The "all" window leaves both ends open.
func timeRange(f models.EffectiveFilters, now time.Time) (*time.Time, *time.Time) {
	now = now.UTC()
	switch f.Window {
	case models.WindowToday:
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return &from, nil
	case models.Window7d:
		from := now.AddDate(0, 0, -7)
		return &from, nil
	case models.Window30d:
		from := now.AddDate(0, 0, -30)
		return &from, nil
	case models.Window90d:
		from := now.AddDate(0, 0, -90)
		return &from, nil
	case models.WindowCustom:
		return f.From, f.To
	default:
		return nil, nil
	}
}

func (e *computeEnv) accounts(ctx context.Context, f models.EffectiveFilters, role models.UserRole) ([]models.Account, error) {
	from, to := timeRange(f, e.now())
	start := time.Now()
	accounts, err := e.store.Accounts(ctx, models.AccountFilter{
		Role:           role,
		Department:     f.Department,
		Cohort:         f.Cohort,
		RegisteredFrom: from,
		RegisteredTo:   to,
	})
	e.metrics.ObserveFetch(models.ClassAccounts, time.Since(start))
	return accounts, err
}

func (e *computeEnv) grades(ctx context.Context, f models.EffectiveFilters) ([]models.GradeRecord, error) {
	from, to := timeRange(f, e.now())
	start := time.Now()
	records, err := e.store.GradeRecords(ctx, models.GradeFilter{
		OwnerID:     f.OwnerID,
		CaseStudyID: f.CaseStudyID,
		Department:  f.Department,
		Cohort:      f.Cohort,
		From:        from,
		To:          to,
	})
	e.metrics.ObserveFetch(models.ClassGrades, time.Since(start))
	return records, err
}

func (e *computeEnv) telemetry(ctx context.Context, f models.EffectiveFilters, errorsOnly bool, limit int) ([]models.TelemetryEvent, error) {
	from, to := timeRange(f, e.now())
	start := time.Now()
	events, err := e.store.TelemetryEvents(ctx, models.TelemetryFilter{
		From:       from,
		To:         to,
		ErrorsOnly: errorsOnly,
		Limit:      limit,
	})
	e.metrics.ObserveFetch(models.ClassTelemetry, time.Since(start))
	return events, err
}

// valueResult packages a (value, ok) primitive outcome. A false ok marks the
// result undefined; it never surfaces as zero.
func valueResult(def *MetricDefinition, value float64, ok bool) *models.MetricResult {
	result := &models.MetricResult{
		MetricID:  def.ID,
		Label:     def.Label,
		Kind:      models.KindValue,
		Unit:      def.Unit,
		Undefined: !ok,
	}
	if ok {
		result.Value = stats.Float(stats.Round2(value))
	}
	return result
}

func seriesResult(def *MetricDefinition, points []models.SeriesPoint) *models.MetricResult {
	return &models.MetricResult{
		MetricID: def.ID,
		Label:    def.Label,
		Kind:     models.KindSeries,
		Unit:     def.Unit,
		Series:   points,
	}
}

func tableResult(def *MetricDefinition, table *models.Table) *models.MetricResult {
	return &models.MetricResult{
		MetricID: def.ID,
		Label:    def.Label,
		Kind:     models.KindTable,
		Table:    table,
	}
}

// buildSeries buckets records by time and aggregates each bucket. Gaps
// between the first and last occupied bucket are padded with empty points so
// trend charts stay contiguous.
func buildSeries[T any](records []T, timestampFn func(T) time.Time, g models.Granularity, weekStart time.Weekday, aggregate func([]T) (*float64, int)) []models.SeriesPoint {
	buckets := stats.BucketByTime(records, timestampFn, stats.Granularity(g), weekStart)
	if len(buckets) == 0 {
		return []models.SeriesPoint{}
	}

	occupied := make(map[time.Time][]T, len(buckets))
	for _, b := range buckets {
		occupied[b.Start] = b.Records
	}

	points := make([]models.SeriesPoint, 0, len(buckets))
	last := buckets[len(buckets)-1].Start
	for cursor := buckets[0].Start; !cursor.After(last); cursor = nextBucket(cursor, g) {
		bucketRecords := occupied[cursor]
		value, count := aggregate(bucketRecords)
		points = append(points, models.SeriesPoint{BucketStart: cursor, Value: value, Count: count})
	}
	return points
}

func nextBucket(start time.Time, g models.Granularity) time.Time {
	switch g {
	case models.GranularityHour:
		return start.Add(time.Hour)
	case models.GranularityWeek:
		return start.AddDate(0, 0, 7)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// countAggregate counts records per bucket; empty buckets report zero, which
// is a real count rather than an undefined value.
func countAggregate[T any](records []T) (*float64, int) {
	return stats.Float(float64(len(records))), len(records)
}

// smoothSeries replaces each defined point value with the rolling mean of the
// trailing window. Undefined points stay undefined.
func smoothSeries(points []models.SeriesPoint, windowSize int) []models.SeriesPoint {
	values := make([]float64, 0, len(points))
	positions := make([]int, 0, len(points))
	for i, p := range points {
		if p.Value != nil {
			values = append(values, *p.Value)
			positions = append(positions, i)
		}
	}
	smoothed := stats.RollingWindow(values, windowSize, func(window []float64) float64 {
		var sum float64
		for _, v := range window {
			sum += v
		}
		return sum / float64(len(window))
	})

	out := make([]models.SeriesPoint, len(points))
	copy(out, points)
	for i, pos := range positions {
		out[pos].Value = stats.Float(stats.Round2(smoothed[i]))
	}
	return out
}
