package service

import (
	"context"
	"sort"
	"time"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/stats"
)

// gradeBoundaries maps numeric scores onto letter grades. Bounds are
// inclusive and scanned from the highest down, so 90 is an A and 89.999 a B.
var gradeBoundaries = []stats.BucketBoundary{
	{LowerBound: 90, Label: "A"},
	{LowerBound: 80, Label: "B"},
	{LowerBound: 70, Label: "C"},
	{LowerBound: 60, Label: "D"},
	{LowerBound: 0, Label: "F"},
}

func scores(records []models.GradeRecord) []*float64 {
	out := make([]*float64, len(records))
	for i, r := range records {
		out[i] = r.FinalScore
	}
	return out
}

func computeSubmissionsTotal(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	return valueResult(def, float64(len(records)), true), nil
}

func computeGradedTotal(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	var graded int
	for _, r := range records {
		if r.Graded() {
			graded++
		}
	}
	return valueResult(def, float64(graded), true), nil
}

// computeGradedRate reports graded submissions over total submissions. With
// no submissions at all the rate is undefined, not zero.
func computeGradedRate(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	var graded int
	for _, r := range records {
		if r.Graded() {
			graded++
		}
	}
	rate, ok := stats.Rate(float64(graded), float64(len(records)))
	return valueResult(def, rate, ok), nil
}

func computeOverallMean(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	mean, ok := stats.Mean(scores(records))
	return valueResult(def, mean, ok), nil
}

func computeOverallMin(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	min, ok := stats.Min(scores(records))
	return valueResult(def, min, ok), nil
}

func computeOverallMax(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	max, ok := stats.Max(scores(records))
	return valueResult(def, max, ok), nil
}

func computeScorePercentile(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	value, ok := stats.Percentile(scores(records), f.Percentile)
	return valueResult(def, value, ok), nil
}

func computeLetterDistribution(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(gradeBoundaries))
	for _, r := range records {
		if r.FinalScore == nil {
			continue
		}
		counts[stats.HistogramBucket(*r.FinalScore, gradeBoundaries)]++
	}

	rows := make([]map[string]interface{}, 0, len(gradeBoundaries))
	for _, boundary := range gradeBoundaries {
		rows = append(rows, map[string]interface{}{"letter": boundary.Label, "count": counts[boundary.Label]})
	}
	return tableResult(def, &models.Table{Columns: []string{"letter", "count"}, Rows: rows}), nil
}

func computeMeanByCaseStudy(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	titles, err := env.caseStudyTitles(ctx)
	if err != nil {
		return nil, err
	}

	groups := stats.GroupBy(records, func(r models.GradeRecord) string { return r.CaseStudyID })
	rows := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		row := map[string]interface{}{
			"case_study_id": group.Key,
			"title":         titles[group.Key],
			"submissions":   len(group.Records),
		}
		if mean, ok := stats.Mean(scores(group.Records)); ok {
			row["mean_score"] = stats.Round2(mean)
		} else {
			row["mean_score"] = nil
		}
		rows = append(rows, row)
	}
	return tableResult(def, &models.Table{Columns: []string{"case_study_id", "title", "submissions", "mean_score"}, Rows: rows}), nil
}

// computeCaseStudyCompletion reports, per catalog case study, how many
// distinct students have submitted. Case studies with no submissions in the
// window still appear with zero counts.
func computeCaseStudyCompletion(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	studies, err := env.store.CaseStudies(ctx)
	if err != nil {
		return nil, err
	}

	groups := stats.GroupBy(records, func(r models.GradeRecord) string { return r.CaseStudyID })
	byStudy := make(map[string][]models.GradeRecord, len(groups))
	for _, group := range groups {
		byStudy[group.Key] = group.Records
	}

	rows := make([]map[string]interface{}, 0, len(studies))
	for _, study := range studies {
		studyRecords := byStudy[study.ID]
		students := make(map[string]struct{}, len(studyRecords))
		for _, r := range studyRecords {
			students[r.AccountID] = struct{}{}
		}
		rows = append(rows, map[string]interface{}{
			"case_study_id":     study.ID,
			"title":             study.Title,
			"submissions":       len(studyRecords),
			"distinct_students": len(students),
		})
	}
	return tableResult(def, &models.Table{Columns: []string{"case_study_id", "title", "submissions", "distinct_students"}, Rows: rows}), nil
}

func computeMeanByStudent(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	aggregates, err := env.studentAggregates(ctx, f)
	if err != nil {
		return nil, err
	}
	return tableResult(def, aggregateTable(aggregates)), nil
}

func computeMeanByDepartment(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	return gradeDimensionMeans(ctx, env, def, f, "department", func(a models.Account) string { return a.Department })
}

func computeMeanByCohort(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	return gradeDimensionMeans(ctx, env, def, f, "cohort", func(a models.Account) string { return a.Cohort })
}

func gradeDimensionMeans(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters, column string, keyFn func(models.Account) string) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	index, err := env.studentIndex(ctx, f)
	if err != nil {
		return nil, err
	}

	groups := stats.GroupBy(records, func(r models.GradeRecord) string {
		account, ok := index[r.AccountID]
		if !ok {
			return "unassigned"
		}
		key := keyFn(account)
		if key == "" {
			return "unassigned"
		}
		return key
	})

	rows := make([]map[string]interface{}, 0, len(groups))
	for _, group := range groups {
		row := map[string]interface{}{column: group.Key, "submissions": len(group.Records)}
		if mean, ok := stats.Mean(scores(group.Records)); ok {
			row["mean_score"] = stats.Round2(mean)
		} else {
			row["mean_score"] = nil
		}
		rows = append(rows, row)
	}
	return tableResult(def, &models.Table{Columns: []string{column, "submissions", "mean_score"}, Rows: rows}), nil
}

// computeTopPerformers ranks students by mean score descending. Students with
// no graded work carry no mean and are excluded from the ranking entirely.
func computeTopPerformers(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	aggregates, err := env.studentAggregates(ctx, f)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.StudentAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.MeanScore != nil {
			ranked = append(ranked, agg)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if *ranked[i].MeanScore != *ranked[j].MeanScore {
			return *ranked[i].MeanScore > *ranked[j].MeanScore
		}
		return ranked[i].AccountID < ranked[j].AccountID
	})
	if f.Limit > 0 && len(ranked) > f.Limit {
		ranked = ranked[:f.Limit]
	}
	return tableResult(def, aggregateTable(ranked)), nil
}

// computeAtRiskStudents lists students whose mean graded score falls below
// the threshold. Students with zero graded submissions are excluded; absence
// of data is not risk.
func computeAtRiskStudents(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	aggregates, err := env.studentAggregates(ctx, f)
	if err != nil {
		return nil, err
	}

	atRisk := make([]models.StudentAggregate, 0)
	for _, agg := range aggregates {
		if agg.MeanScore != nil && *agg.MeanScore < f.Threshold {
			atRisk = append(atRisk, agg)
		}
	}
	return tableResult(def, aggregateTable(atRisk)), nil
}

func computeStudentSummary(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	aggregates, err := env.studentAggregates(ctx, f)
	if err != nil {
		return nil, err
	}
	return tableResult(def, aggregateTable(aggregates)), nil
}

func computeSubmissionsTrend(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	points := buildSeries(records, func(r models.GradeRecord) time.Time { return r.SubmittedAt }, f.Granularity, env.weekStart, countAggregate[models.GradeRecord])
	return seriesResult(def, points), nil
}

func computeMeanScoreTrend(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	points := buildSeries(records, func(r models.GradeRecord) time.Time { return r.SubmittedAt }, f.Granularity, env.weekStart, meanScoreAggregate)
	return seriesResult(def, points), nil
}

func computeMeanScoreTrendSmoothed(ctx context.Context, env *computeEnv, def *MetricDefinition, f models.EffectiveFilters) (*models.MetricResult, error) {
	records, err := env.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	points := buildSeries(records, func(r models.GradeRecord) time.Time { return r.SubmittedAt }, f.Granularity, env.weekStart, meanScoreAggregate)
	return seriesResult(def, smoothSeries(points, rollingWindowSize)), nil
}

// meanScoreAggregate averages graded scores in a bucket. A bucket with
// submissions but no grades keeps its count and reports a nil value.
func meanScoreAggregate(records []models.GradeRecord) (*float64, int) {
	mean, ok := stats.Mean(scores(records))
	if !ok {
		return nil, len(records)
	}
	return stats.Float(stats.Round2(mean)), len(records)
}

// studentIndex loads student accounts keyed by id for joining names onto
// grade aggregates. The metric window bounds submissions, not registrations,
// so no time range applies here.
func (e *computeEnv) studentIndex(ctx context.Context, f models.EffectiveFilters) (map[string]models.Account, error) {
	start := time.Now()
	accounts, err := e.store.Accounts(ctx, models.AccountFilter{
		Role:       models.RoleStudent,
		Department: f.Department,
		Cohort:     f.Cohort,
	})
	e.metrics.ObserveFetch(models.ClassAccounts, time.Since(start))
	if err != nil {
		return nil, err
	}
	index := make(map[string]models.Account, len(accounts))
	for _, account := range accounts {
		index[account.ID] = account
	}
	return index, nil
}

func (e *computeEnv) caseStudyTitles(ctx context.Context) (map[string]string, error) {
	studies, err := e.store.CaseStudies(ctx)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(studies))
	for _, study := range studies {
		titles[study.ID] = study.Title
	}
	return titles, nil
}

// studentAggregates fetches the scoped grade records and rolls them up per
// student in submission order.
func (e *computeEnv) studentAggregates(ctx context.Context, f models.EffectiveFilters) ([]models.StudentAggregate, error) {
	records, err := e.grades(ctx, f)
	if err != nil {
		return nil, err
	}
	index, err := e.studentIndex(ctx, f)
	if err != nil {
		return nil, err
	}
	return aggregateStudents(records, index), nil
}

// aggregateStudents rolls grade records up into per-student aggregates,
// preserving the first-occurrence order of students in the record stream.
func aggregateStudents(records []models.GradeRecord, index map[string]models.Account) []models.StudentAggregate {
	groups := stats.GroupBy(records, func(r models.GradeRecord) string { return r.AccountID })
	aggregates := make([]models.StudentAggregate, 0, len(groups))
	for _, group := range groups {
		agg := models.StudentAggregate{AccountID: group.Key}
		if account, ok := index[group.Key]; ok {
			agg.FullName = account.FullName
			agg.Email = account.Email
		}

		studies := make(map[string]struct{}, len(group.Records))
		for _, r := range group.Records {
			agg.Submissions++
			if r.Graded() {
				agg.GradedSubmissions++
			}
			studies[r.CaseStudyID] = struct{}{}
		}
		agg.DistinctCaseStudies = len(studies)

		if mean, ok := stats.Mean(scores(group.Records)); ok {
			agg.MeanScore = stats.Float(stats.Round2(mean))
		}
		if max, ok := stats.Max(scores(group.Records)); ok {
			agg.MaxScore = stats.Float(stats.Round2(max))
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates
}

func aggregateTable(aggregates []models.StudentAggregate) *models.Table {
	rows := make([]map[string]interface{}, 0, len(aggregates))
	for _, agg := range aggregates {
		row := map[string]interface{}{
			"account_id":            agg.AccountID,
			"full_name":             agg.FullName,
			"email":                 agg.Email,
			"submissions":           agg.Submissions,
			"graded_submissions":    agg.GradedSubmissions,
			"distinct_case_studies": agg.DistinctCaseStudies,
		}
		if agg.MeanScore != nil {
			row["mean_score"] = *agg.MeanScore
		} else {
			row["mean_score"] = nil
		}
		if agg.MaxScore != nil {
			row["max_score"] = *agg.MaxScore
		} else {
			row["max_score"] = nil
		}
		rows = append(rows, row)
	}
	return &models.Table{
		Columns: []string{"account_id", "full_name", "email", "submissions", "graded_submissions", "distinct_case_studies", "mean_score", "max_score"},
		Rows:    rows,
	}
}
