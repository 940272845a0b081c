package dto

import (
	"time"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

// MetricQuery is the query-string surface of the resolve endpoint.
type MetricQuery struct {
	Window      string   `form:"window"`
	From        string   `form:"from"`
	To          string   `form:"to"`
	OwnerID     string   `form:"owner_id"`
	Department  string   `form:"department"`
	Cohort      string   `form:"cohort"`
	CaseStudyID string   `form:"case_study_id"`
	Granularity string   `form:"granularity"`
	Threshold   *float64 `form:"threshold"`
	Percentile  *float64 `form:"p"`
	Limit       int      `form:"limit"`
	Search      string   `form:"search"`
}

// ToParams converts the raw query into metric parameters, parsing RFC3339
// timestamps.
func (q MetricQuery) ToParams() (models.MetricParams, error) {
	params := models.MetricParams{
		Window:      q.Window,
		OwnerID:     q.OwnerID,
		Department:  q.Department,
		Cohort:      q.Cohort,
		CaseStudyID: q.CaseStudyID,
		Granularity: models.Granularity(q.Granularity),
		Threshold:   q.Threshold,
		Percentile:  q.Percentile,
		Limit:       q.Limit,
		Search:      q.Search,
	}

	if q.From != "" {
		from, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			return params, appErrors.Clone(appErrors.ErrValidation, "from must be an RFC3339 timestamp")
		}
		params.From = &from
	}
	if q.To != "" {
		to, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			return params, appErrors.Clone(appErrors.ErrValidation, "to must be an RFC3339 timestamp")
		}
		params.To = &to
	}

	return params, nil
}

// ExportQuery extends the metric query with an output format.
type ExportQuery struct {
	MetricQuery
	Format string `form:"format"`
}

// InvalidateRequest is the body of the cache invalidation endpoint. An empty
// metric id drops the entire cache.
type InvalidateRequest struct {
	MetricID string `json:"metric_id"`
}

// BadgeResponse pairs a student's aggregate with the badges it earns.
type BadgeResponse struct {
	Student *models.StudentAggregate `json:"student"`
	Badges  []models.Badge           `json:"badges"`
}
