package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-platform/mind-analytics-api/internal/models"
)

func newRecordMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRecordRepositoryAccounts(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "role", "department", "cohort", "registered_at"}).
		AddRow("acc-1", "a@mind.dev", "Student A", "STUDENT", "Medicine", "2024A", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name, role, department, cohort, registered_at FROM accounts WHERE 1=1 AND role = $1 ORDER BY registered_at ASC, id ASC")).
		WithArgs(models.RoleStudent).
		WillReturnRows(rows)

	accounts, err := repo.Accounts(context.Background(), models.AccountFilter{Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGradeRecordsOwnerScope(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	score := 92.0
	rows := sqlmock.NewRows([]string{"id", "account_id", "case_study_id", "final_score", "submitted_at", "graded_at", "summary"}).
		AddRow("gr-1", "acc-1", "cs-1", score, time.Now(), time.Now(), "well argued").
		AddRow("gr-2", "acc-1", "cs-2", nil, time.Now(), nil, "")
	mock.ExpectQuery("SELECT g.id, g.account_id, g.case_study_id").
		WithArgs("acc-1").
		WillReturnRows(rows)

	records, err := repo.GradeRecords(context.Background(), models.GradeFilter{OwnerID: "acc-1"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].FinalScore)
	assert.Equal(t, 92.0, *records[0].FinalScore)
	assert.Nil(t, records[1].FinalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGradeRecordsDepartmentJoin(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery("JOIN accounts a ON a.id = g.account_id").
		WithArgs("Medicine").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "case_study_id", "final_score", "submitted_at", "graded_at", "summary"}))

	_, err := repo.GradeRecords(context.Background(), models.GradeFilter{Department: "Medicine"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryTelemetryErrorLogOrdering(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "service", "route", "status_code", "latency_ms", "is_error", "ai_model", "input_tokens", "output_tokens"}).
		AddRow("ev-2", time.Now(), "api", "/v1/chat", 500, 120.5, true, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("AND is_error = TRUE ORDER BY occurred_at DESC, id DESC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(rows)

	events, err := repo.TelemetryEvents(context.Background(), models.TelemetryFilter{ErrorsOnly: true, Limit: 50})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryCaseStudies(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title"}).
		AddRow("cs-1", "Cardiology Intake").
		AddRow("cs-2", "Emergency Triage")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title FROM case_studies ORDER BY title ASC, id ASC")).
		WillReturnRows(rows)

	studies, err := repo.CaseStudies(context.Background())
	require.NoError(t, err)
	assert.Len(t, studies, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
