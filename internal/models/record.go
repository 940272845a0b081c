package models

import "time"

// GradeRecord is a graded case-study submission. FinalScore is nil until the
// submission has been graded; only non-null scores participate in scoring
// aggregates.
type GradeRecord struct {
	ID          string     `db:"id" json:"id"`
	AccountID   string     `db:"account_id" json:"account_id"`
	CaseStudyID string     `db:"case_study_id" json:"case_study_id"`
	FinalScore  *float64   `db:"final_score" json:"final_score"`
	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
	GradedAt    *time.Time `db:"graded_at" json:"graded_at,omitempty"`
	Summary     string     `db:"summary" json:"summary,omitempty"`
}

// Graded reports whether the record carries a score.
func (g GradeRecord) Graded() bool {
	return g.FinalScore != nil
}

// GradeFilter captures filtering criteria for grade record listings.
type GradeFilter struct {
	OwnerID     string
	CaseStudyID string
	Department  string
	Cohort      string
	From        *time.Time
	To          *time.Time
}

// CaseStudy is static reference data joined against grade records.
type CaseStudy struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

// TelemetryEvent is a backend request observation. The error flag is computed
// upstream from the status code and treated as given here.
type TelemetryEvent struct {
	ID           string    `db:"id" json:"id"`
	OccurredAt   time.Time `db:"occurred_at" json:"occurred_at"`
	Service      string    `db:"service" json:"service"`
	Route        string    `db:"route" json:"route"`
	StatusCode   int       `db:"status_code" json:"status_code"`
	LatencyMs    *float64  `db:"latency_ms" json:"latency_ms"`
	IsError      bool      `db:"is_error" json:"is_error"`
	AIModel      *string   `db:"ai_model" json:"ai_model,omitempty"`
	InputTokens  *int64    `db:"input_tokens" json:"input_tokens,omitempty"`
	OutputTokens *int64    `db:"output_tokens" json:"output_tokens,omitempty"`
}

// TelemetryFilter captures filtering criteria for telemetry listings.
type TelemetryFilter struct {
	From       *time.Time
	To         *time.Time
	Service    string
	Route      string
	ErrorsOnly bool
	Limit      int
}
