package service

import (
	"context"
	"strings"
	"time"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/stats"
)

func computeAccountsTotal(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	accounts, err := env.accounts(ctx, f, "")
	if err != nil {
		return nil, err
	}
	return valueResult(def, float64(len(accounts)), true), nil
}

func computeStudentsTotal(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	accounts, err := env.accounts(ctx, f, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	return valueResult(def, float64(len(accounts)), true), nil
}

func computeAccountsByRole(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	return accountBreakdown(ctx, env, def, f, "role", func(a models.Account) string { return string(a.Role) })
}

func computeAccountsByDepartment(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	return accountBreakdown(ctx, env, def, f, "department", func(a models.Account) string { return a.Department })
}

func computeAccountsByCohort(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	return accountBreakdown(ctx, env, def, f, "cohort", func(a models.Account) string { return a.Cohort })
}

// accountBreakdown counts accounts grouped by a single dimension. Group order
// follows first occurrence in the deterministically ordered account listing.
func accountBreakdown(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters, column string, keyFn func(models.Account) string) (*models.MetricResult, error) {
	accounts, err := env.accounts(ctx, f, "")
	if err != nil {
		return nil, err
	}

	groups := stats.GroupBy(accounts, keyFn)
	rows := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		label := group.Key
		if label == "" {
			label = "unassigned"
		}
		rows = append(rows, map[string]interface{}{column: label, "count": len(group.Records)})
	}

	return tableResult(def, &models.Table{Columns: []string{column, "count"}, Rows: rows}), nil
}

// computeActiveStudents counts distinct students with at least one submission
// in the window. Activity is measured on submissions, not registrations.
func computeActiveStudents(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(records))
	for _, r := range records {
		active[r.AccountID] = struct{}{}
	}
	return valueResult(def, float64(len(active)), true), nil
}

func computeRegistrationsTrend(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	accounts, err := env.accounts(ctx, f, "")
	if err != nil {
		return nil, err
	}
	points := buildSeries(accounts, func(a models.Account) time.Time { return a.RegisteredAt }, f.Granularity, env.weekStart, countAggregate[models.Account])
	return seriesResult(def, points), nil
}

func computeRegistrationsTrendSmoothed(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	accounts, err := env.accounts(ctx, f, "")
	if err != nil {
		return nil, err
	}
	points := buildSeries(accounts, func(a models.Account) time.Time { return a.RegisteredAt }, f.Granularity, env.weekStart, countAggregate[models.Account])
	return seriesResult(def, smoothSeries(points, rollingWindowSize)), nil
}

func computeStudentDirectory(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	accounts, err := env.accounts(ctx, f, models.RoleStudent)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(f.Search))
	rows := make([]map[string]interface{}, 0, len(accounts))
	for _, account := range accounts {
		if needle != "" &&
			!strings.Contains(strings.ToLower(account.FullName), needle) &&
			!strings.Contains(strings.ToLower(account.Email), needle) {
			continue
		}
		rows = append(rows, map[string]interface{}{
			"account_id":    account.ID,
			"full_name":     account.FullName,
			"email":         account.Email,
			"department":    account.Department,
			"cohort":        account.Cohort,
			"registered_at": account.RegisteredAt.UTC().Format(time.RFC3339),
		})
		if f.Limit > 0 && len(rows) >= f.Limit {
			break
		}
	}

	return tableResult(def, &models.Table{
		Columns: []string{"account_id", "full_name", "email", "department", "cohort", "registered_at"},
		Rows:    rows,
	}), nil
}
