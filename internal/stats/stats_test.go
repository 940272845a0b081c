package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floats(values ...float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		v := values[i]
		out[i] = &v
	}
	return out
}

func TestMeanExcludesNulls(t *testing.T) {
	values := []*float64{Float(92), nil, Float(58)}
	mean, ok := Mean(values)
	require.True(t, ok)
	assert.InDelta(t, 75.0, mean, 1e-9)
}

func TestMeanUndefinedOnEmptyAndAllNull(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok)

	_, ok = Mean([]*float64{nil, nil})
	assert.False(t, ok)
}

func TestPercentileBoundsMatchMinMax(t *testing.T) {
	values := floats(42, 7, 99, 13, 56)

	p0, ok := Percentile(values, 0)
	require.True(t, ok)
	min, _ := Min(values)
	assert.Equal(t, min, p0)

	p100, ok := Percentile(values, 1)
	require.True(t, ok)
	max, _ := Max(values)
	assert.Equal(t, max, p100)
}

func TestPercentileLinearInterpolation(t *testing.T) {
	// sorted: 10 20 30 40, p=0.5 -> pos 1.5 -> 25
	median, ok := Percentile(floats(40, 10, 30, 20), 0.5)
	require.True(t, ok)
	assert.InDelta(t, 25.0, median, 1e-9)

	p95, ok := Percentile(floats(100, 200, 300, 400, 500), 0.95)
	require.True(t, ok)
	assert.InDelta(t, 480.0, p95, 1e-9)
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	values := floats(3, 1, 2)
	_, ok := Percentile(values, 0.5)
	require.True(t, ok)
	assert.Equal(t, 3.0, *values[0])
	assert.Equal(t, 1.0, *values[1])
	assert.Equal(t, 2.0, *values[2])
}

func TestPercentileUndefinedCases(t *testing.T) {
	_, ok := Percentile(nil, 0.5)
	assert.False(t, ok)

	_, ok = Percentile([]*float64{nil}, 0.5)
	assert.False(t, ok)

	_, ok = Percentile(floats(1, 2), 1.5)
	assert.False(t, ok)
}

func TestRateZeroDenominator(t *testing.T) {
	_, ok := Rate(5, 0)
	assert.False(t, ok)

	rate, ok := Rate(1, 4)
	require.True(t, ok)
	assert.Equal(t, 0.25, rate)
}

func TestGroupByPreservesFirstOccurrenceOrder(t *testing.T) {
	type record struct{ key string }
	records := []record{{"b"}, {"a"}, {"b"}, {"c"}, {"a"}}

	groups := GroupBy(records, func(r record) string { return r.key })
	require.Len(t, groups, 3)
	assert.Equal(t, "b", groups[0].Key)
	assert.Equal(t, "a", groups[1].Key)
	assert.Equal(t, "c", groups[2].Key)
	assert.Len(t, groups[0].Records, 2)
	assert.Len(t, groups[1].Records, 2)
	assert.Len(t, groups[2].Records, 1)
}

func TestBucketByTimeCalendarAlignment(t *testing.T) {
	type event struct{ at time.Time }
	// Wednesday and the following Monday.
	wed := time.Date(2024, 5, 15, 13, 45, 0, 0, time.UTC)
	mon := time.Date(2024, 5, 20, 2, 0, 0, 0, time.UTC)
	events := []event{{mon}, {wed}}

	buckets := BucketByTime(events, func(e event) time.Time { return e.at }, Week, time.Monday)
	require.Len(t, buckets, 2)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), buckets[0].Start)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), buckets[1].Start)

	// Same events, Sunday week start: the Wednesday belongs to May 12.
	buckets = BucketByTime(events, func(e event) time.Time { return e.at }, Week, time.Sunday)
	require.Len(t, buckets, 2)
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), buckets[0].Start)

	day := BucketStart(wed, Day, time.Monday)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), day)

	hour := BucketStart(wed, Hour, time.Monday)
	assert.Equal(t, time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC), hour)
}

func TestBucketByTimeAscendingOrder(t *testing.T) {
	type event struct{ at time.Time }
	events := []event{
		{time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	buckets := BucketByTime(events, func(e event) time.Time { return e.at }, Day, time.Monday)
	require.Len(t, buckets, 3)
	assert.True(t, buckets[0].Start.Before(buckets[1].Start))
	assert.True(t, buckets[1].Start.Before(buckets[2].Start))
}

func TestRollingWindowPartialHead(t *testing.T) {
	sum := func(values []float64) float64 {
		var total float64
		for _, v := range values {
			total += v
		}
		return total
	}
	out := RollingWindow([]float64{1, 2, 3, 4}, 3, sum)
	require.Len(t, out, 4)
	assert.Equal(t, []float64{1, 3, 6, 9}, out)
}

func TestRollingWindowEmptyAndInvalid(t *testing.T) {
	assert.Nil(t, RollingWindow(nil, 3, func([]float64) float64 { return 0 }))
	assert.Nil(t, RollingWindow([]float64{1}, 0, func([]float64) float64 { return 0 }))
}

func TestHistogramBucketScansHighestFirst(t *testing.T) {
	boundaries := []BucketBoundary{
		{LowerBound: 90, Label: "A"},
		{LowerBound: 80, Label: "B"},
		{LowerBound: 70, Label: "C"},
		{LowerBound: 60, Label: "D"},
		{LowerBound: 0, Label: "F"},
	}
	assert.Equal(t, "A", HistogramBucket(90, boundaries))
	assert.Equal(t, "B", HistogramBucket(89.999, boundaries))
	assert.Equal(t, "F", HistogramBucket(0, boundaries))
	assert.Equal(t, "A", HistogramBucket(100, boundaries))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 83.33, Round2(83.3333))
	assert.Equal(t, 83.34, Round2(83.336))
}
