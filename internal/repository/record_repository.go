package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/mind-platform/mind-analytics-api/internal/models"
)

// RecordRepository provides uniform read-only access to the operational
// record collections. The engine never mutates these tables; it pulls
// transient slices per query and aggregates in memory.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository instantiates the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Accounts lists accounts matching the filter, ordered by registration time
// for deterministic output.
func (r *RecordRepository) Accounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, error) {
	var builder strings.Builder
	builder.WriteString("SELECT id, email, full_name, role, department, cohort, registered_at FROM accounts WHERE 1=1")
	var args []interface{}
	if filter.ID != "" {
		args = append(args, filter.ID)
		builder.WriteString(fmt.Sprintf(" AND id = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		builder.WriteString(fmt.Sprintf(" AND role = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		builder.WriteString(fmt.Sprintf(" AND department = $%d", len(args)))
	}
	if filter.Cohort != "" {
		args = append(args, filter.Cohort)
		builder.WriteString(fmt.Sprintf(" AND cohort = $%d", len(args)))
	}
	if filter.RegisteredFrom != nil {
		args = append(args, *filter.RegisteredFrom)
		builder.WriteString(fmt.Sprintf(" AND registered_at >= $%d", len(args)))
	}
	if filter.RegisteredTo != nil {
		args = append(args, *filter.RegisteredTo)
		builder.WriteString(fmt.Sprintf(" AND registered_at < $%d", len(args)))
	}
	builder.WriteString(" ORDER BY registered_at ASC, id ASC")

	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return accounts, nil
}

// GradeRecords lists grade submissions matching the filter. Department and
// cohort scopes join through the owning account.
func (r *RecordRepository) GradeRecords(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT g.id, g.account_id, g.case_study_id, g.final_score, g.submitted_at, g.graded_at, g.summary
        FROM grade_records g`)
	if filter.Department != "" || filter.Cohort != "" {
		builder.WriteString(" JOIN accounts a ON a.id = g.account_id")
	}
	builder.WriteString(" WHERE 1=1")
	var args []interface{}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		builder.WriteString(fmt.Sprintf(" AND g.account_id = $%d", len(args)))
	}
	if filter.CaseStudyID != "" {
		args = append(args, filter.CaseStudyID)
		builder.WriteString(fmt.Sprintf(" AND g.case_study_id = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		builder.WriteString(fmt.Sprintf(" AND a.department = $%d", len(args)))
	}
	if filter.Cohort != "" {
		args = append(args, filter.Cohort)
		builder.WriteString(fmt.Sprintf(" AND a.cohort = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		builder.WriteString(fmt.Sprintf(" AND g.submitted_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		builder.WriteString(fmt.Sprintf(" AND g.submitted_at < $%d", len(args)))
	}
	builder.WriteString(" ORDER BY g.submitted_at ASC, g.id ASC")

	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query grade records: %w", err)
	}
	return records, nil
}

// TelemetryEvents lists backend request observations matching the filter.
func (r *RecordRepository) TelemetryEvents(ctx context.Context, filter models.TelemetryFilter) ([]models.TelemetryEvent, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT id, occurred_at, service, route, status_code, latency_ms, is_error, ai_model, input_tokens, output_tokens
        FROM telemetry_events WHERE 1=1`)
	var args []interface{}
	if filter.From != nil {
		args = append(args, *filter.From)
		builder.WriteString(fmt.Sprintf(" AND occurred_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		builder.WriteString(fmt.Sprintf(" AND occurred_at < $%d", len(args)))
	}
	if filter.Service != "" {
		args = append(args, filter.Service)
		builder.WriteString(fmt.Sprintf(" AND service = $%d", len(args)))
	}
	if filter.Route != "" {
		args = append(args, filter.Route)
		builder.WriteString(fmt.Sprintf(" AND route = $%d", len(args)))
	}
	if filter.ErrorsOnly {
		builder.WriteString(" AND is_error = TRUE")
	}
	if filter.ErrorsOnly && filter.Limit > 0 {
		// The error log wants the most recent entries.
		builder.WriteString(" ORDER BY occurred_at DESC, id DESC")
		args = append(args, filter.Limit)
		builder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	} else {
		builder.WriteString(" ORDER BY occurred_at ASC, id ASC")
		if filter.Limit > 0 {
			args = append(args, filter.Limit)
			builder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
		}
	}

	var events []models.TelemetryEvent
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query telemetry events: %w", err)
	}
	return events, nil
}

// CaseStudies lists the case-study catalog.
func (r *RecordRepository) CaseStudies(ctx context.Context) ([]models.CaseStudy, error) {
	var studies []models.CaseStudy
	if err := r.db.SelectContext(ctx, &studies, "SELECT id, title FROM case_studies ORDER BY title ASC, id ASC"); err != nil {
		return nil, fmt.Errorf("query case studies: %w", err)
	}
	return studies, nil
}
