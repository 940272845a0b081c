package service

import (
	"context"
	"time"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/stats"
)

// aiCostPerMillionTokensUSD is the flat blended rate the platform budgets AI
// usage at. TODO: source per-model rates from the billing service once it
// exposes them.
const aiCostPerMillionTokensUSD = 15.0

func latencies(events []models.TelemetryEvent) []*float64 {
	out := make([]*float64, len(events))
	for i, e := range events {
		out[i] = e.LatencyMs
	}
	return out
}

func countErrors(events []models.TelemetryEvent) int {
	var errors int
	for _, e := range events {
		if e.IsError {
			errors++
		}
	}
	return errors
}

func computeRequestsTotal(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	return valueResult(def, float64(len(events)), true), nil
}

func computeErrorCount(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, true, 0)
	if err != nil {
		return nil, err
	}
	return valueResult(def, float64(len(events)), true), nil
}

func computeErrorRate(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	rate, ok := stats.Rate(float64(countErrors(events)), float64(len(events)))
	return valueResult(def, rate, ok), nil
}

// computeUptimeRatio approximates uptime as the complement of the error rate
// over the window. Windows with no traffic report undefined rather than
// perfect uptime.
func computeUptimeRatio(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	rate, ok := stats.Rate(float64(countErrors(events)), float64(len(events)))
	if !ok {
		return valueResult(def, 0, false), nil
	}
	return valueResult(def, 1-rate, true), nil
}

func computeLatencyMean(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	mean, ok := stats.Mean(latencies(events))
	return valueResult(def, mean, ok), nil
}

func computeLatencyPercentile(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	value, ok := stats.Percentile(latencies(events), f.Percentile)
	return valueResult(def, value, ok), nil
}

func computeRequestsTrend(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	points := buildSeries(events, func(e models.TelemetryEvent) time.Time { return e.OccurredAt }, f.Granularity, env.weekStart, countAggregate[models.TelemetryEvent])
	return seriesResult(def, points), nil
}

func computeErrorRateTrend(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	points := buildSeries(events, func(e models.TelemetryEvent) time.Time { return e.OccurredAt }, f.Granularity, env.weekStart, func(bucket []models.TelemetryEvent) (*float64, int) {
		rate, ok := stats.Rate(float64(countErrors(bucket)), float64(len(bucket)))
		if !ok {
			return nil, len(bucket)
		}
		return stats.Float(stats.Round2(rate)), len(bucket)
	})
	return seriesResult(def, points), nil
}

func computeLatencyByRoute(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}

	groups := stats.GroupBy(events, func(e models.TelemetryEvent) string { return e.Route })
	rows := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		row := map[string]interface{}{
			"route":    group.Key,
			"requests": len(group.Records),
			"errors":   countErrors(group.Records),
		}
		if mean, ok := stats.Mean(latencies(group.Records)); ok {
			row["mean_latency_ms"] = stats.Round2(mean)
		} else {
			row["mean_latency_ms"] = nil
		}
		if p95, ok := stats.Percentile(latencies(group.Records), 0.95); ok {
			row["p95_latency_ms"] = stats.Round2(p95)
		} else {
			row["p95_latency_ms"] = nil
		}
		rows = append(rows, row)
	}
	return tableResult(def, &models.Table{Columns: []string{"route", "requests", "errors", "mean_latency_ms", "p95_latency_ms"}, Rows: rows}), nil
}

func computeRequestsByService(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}

	groups := stats.GroupBy(events, func(e models.TelemetryEvent) string { return e.Service })
	rows := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		row := map[string]interface{}{
			"service":  group.Key,
			"requests": len(group.Records),
			"errors":   countErrors(group.Records),
		}
		if rate, ok := stats.Rate(float64(countErrors(group.Records)), float64(len(group.Records))); ok {
			row["error_rate"] = stats.Round2(rate)
		} else {
			row["error_rate"] = nil
		}
		rows = append(rows, row)
	}
	return tableResult(def, &models.Table{Columns: []string{"service", "requests", "errors", "error_rate"}, Rows: rows}), nil
}

func aiEvents(events []models.TelemetryEvent) []models.TelemetryEvent {
	out := make([]models.TelemetryEvent, 0, len(events))
	for _, e := range events {
		if e.AIModel != nil && *e.AIModel != "" {
			out = append(out, e)
		}
	}
	return out
}

func tokenTotal(events []models.TelemetryEvent) int64 {
	var total int64
	for _, e := range events {
		if e.InputTokens != nil {
			total += *e.InputTokens
		}
		if e.OutputTokens != nil {
			total += *e.OutputTokens
		}
	}
	return total
}

func computeAIRequestsTotal(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	return valueResult(def, float64(len(aiEvents(events))), true), nil
}

func computeAITokensTotal(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	return valueResult(def, float64(tokenTotal(aiEvents(events))), true), nil
}

func computeAICostEstimate(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	tokens := float64(tokenTotal(aiEvents(events)))
	return valueResult(def, tokens/1_000_000*aiCostPerMillionTokensUSD, true), nil
}

func computeAIRequestsByModel(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}

	groups := stats.GroupBy(aiEvents(events), func(e models.TelemetryEvent) string { return *e.AIModel })
	rows := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		rows = append(rows, map[string]interface{}{
			"model":    group.Key,
			"requests": len(group.Records),
			"tokens":   tokenTotal(group.Records),
		})
	}
	return tableResult(def, &models.Table{Columns: []string{"model", "requests", "tokens"}, Rows: rows}), nil
}

func computeAITokensTrend(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, false, 0)
	if err != nil {
		return nil, err
	}
	points := buildSeries(aiEvents(events), func(e models.TelemetryEvent) time.Time { return e.OccurredAt }, f.Granularity, env.weekStart, func(bucket []models.TelemetryEvent) (*float64, int) {
		return stats.Float(float64(tokenTotal(bucket))), len(bucket)
	})
	return seriesResult(def, points), nil
}

// computeErrorLog lists the most recent error events, newest first.
func computeErrorLog(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	events, err := env.telemetry(ctx, f, true, f.Limit)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		row := map[string]interface{}{
			"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
			"service":     e.Service,
			"route":       e.Route,
			"status_code": e.StatusCode,
		}
		if e.LatencyMs != nil {
			row["latency_ms"] = stats.Round2(*e.LatencyMs)
		} else {
			row["latency_ms"] = nil
		}
		rows = append(rows, row)
	}
	return tableResult(def, &models.Table{Columns: []string{"occurred_at", "service", "route", "status_code", "latency_ms"}, Rows: rows}), nil
}
