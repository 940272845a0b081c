// Package stats provides the aggregation primitives the metric catalog is
// composed from. Every primitive has an explicit empty-input policy: "no
// data" is reported through an ok=false return, never as zero and never as a
// panic. Input slices are never mutated.
package stats

import (
	"math"
	"sort"
	"time"
)

// Mean returns the arithmetic mean of the non-nil values. ok is false when
// the sequence is empty or contains only nils; callers must distinguish that
// from a mean of zero.
func Mean(values []*float64) (float64, bool) {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Min returns the smallest non-nil value.
func Min(values []*float64) (float64, bool) {
	min, found := 0.0, false
	for _, v := range values {
		if v == nil {
			continue
		}
		if !found || *v < min {
			min = *v
			found = true
		}
	}
	return min, found
}

// Max returns the largest non-nil value.
func Max(values []*float64) (float64, bool) {
	max, found := 0.0, false
	for _, v := range values {
		if v == nil {
			continue
		}
		if !found || *v > max {
			max = *v
			found = true
		}
	}
	return max, found
}

// Percentile computes the linearly interpolated p-quantile (p in [0,1]) over
// the non-nil values, matching continuous-percentile semantics:
// Percentile(v, 0) == min and Percentile(v, 1) == max. ok is false for an
// empty or all-nil sequence, or for p outside [0,1]. The input is copied
// before sorting.
func Percentile(values []*float64, p float64) (float64, bool) {
	if p < 0 || p > 1 {
		return 0, false
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			sorted = append(sorted, *v)
		}
	}
	if len(sorted) == 0 {
		return 0, false
	}
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0], true
	}
	pos := p * float64(len(sorted)-1)
	lower := int(pos)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1], true
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower]), true
}

// Rate divides numerator by denominator, reporting ok=false when the
// denominator is zero. It never divides by zero and never returns infinity.
func Rate(numerator, denominator float64) (float64, bool) {
	if denominator == 0 {
		return 0, false
	}
	return numerator / denominator, true
}

// Group is one partition produced by GroupBy.
type Group[K comparable, T any] struct {
	Key     K
	Records []T
}

// GroupBy partitions records by key, preserving the insertion order of each
// key's first occurrence so repeated identical queries produce identical
// output ordering.
func GroupBy[T any, K comparable](records []T, keyFn func(T) K) []Group[K, T] {
	index := make(map[K]int, len(records))
	groups := make([]Group[K, T], 0)
	for _, record := range records {
		key := keyFn(record)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group[K, T]{Key: key})
		}
		groups[i].Records = append(groups[i].Records, record)
	}
	return groups
}

// Granularity of calendar-aligned time buckets.
type Granularity string

const (
	Hour Granularity = "hour"
	Day  Granularity = "day"
	Week Granularity = "week"
)

// TimeBucket is one calendar-aligned bucket produced by BucketByTime.
type TimeBucket[T any] struct {
	Start   time.Time
	Records []T
}

// BucketByTime partitions records into calendar-aligned buckets. Boundaries
// depend only on the record timestamp (in UTC) and the configured week start
// day, never on query time, so the same record always lands in the same
// bucket. Buckets are returned in ascending order of start time; gaps between
// occupied buckets are not padded.
func BucketByTime[T any](records []T, timestampFn func(T) time.Time, g Granularity, weekStart time.Weekday) []TimeBucket[T] {
	index := make(map[time.Time]int, len(records))
	buckets := make([]TimeBucket[T], 0)
	for _, record := range records {
		start := BucketStart(timestampFn(record), g, weekStart)
		i, ok := index[start]
		if !ok {
			i = len(buckets)
			index[start] = i
			buckets = append(buckets, TimeBucket[T]{Start: start})
		}
		buckets[i].Records = append(buckets[i].Records, record)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start.Before(buckets[j].Start) })
	return buckets
}

// BucketStart truncates a timestamp to its calendar-aligned bucket boundary.
func BucketStart(t time.Time, g Granularity, weekStart time.Weekday) time.Time {
	t = t.UTC()
	switch g {
	case Hour:
		return t.Truncate(time.Hour)
	case Week:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// RollingWindow aggregates, for each position i, the last windowSize points
// ending at i. Positions with fewer than windowSize prior points aggregate
// whatever is available; no synthetic zeros are padded in.
func RollingWindow(series []float64, windowSize int, aggFn func([]float64) float64) []float64 {
	if windowSize <= 0 || len(series) == 0 {
		return nil
	}
	out := make([]float64, len(series))
	for i := range series {
		start := i - windowSize + 1
		if start < 0 {
			start = 0
		}
		out[i] = aggFn(series[start : i+1])
	}
	return out
}

// BucketBoundary pairs an inclusive lower bound with a bucket label.
type BucketBoundary struct {
	LowerBound float64
	Label      string
}

// HistogramBucket maps a value onto the first matching boundary scanning from
// the highest lower bound down. Boundaries must be ordered descending by
// lower bound; the last boundary catches everything at or above its bound,
// and values below every bound fall into the final boundary's label as well
// when its bound is the minimum of the domain.
func HistogramBucket(value float64, boundaries []BucketBoundary) string {
	for _, b := range boundaries {
		if value >= b.LowerBound {
			return b.Label
		}
	}
	if len(boundaries) == 0 {
		return ""
	}
	return boundaries[len(boundaries)-1].Label
}

// Float returns a pointer to v. Metric payloads use *float64 to keep the
// undefined marker distinct from zero.
func Float(v float64) *float64 {
	return &v
}

// Round2 rounds to two decimal places, the fixed display precision of the
// dashboards.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
