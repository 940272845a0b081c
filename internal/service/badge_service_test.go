package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/stats"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

func TestLetterGradeBoundaries(t *testing.T) {
	assert.Equal(t, "A", LetterGrade(100))
	assert.Equal(t, "A", LetterGrade(90))
	assert.Equal(t, "B", LetterGrade(89.999))
	assert.Equal(t, "C", LetterGrade(70))
	assert.Equal(t, "D", LetterGrade(60))
	assert.Equal(t, "F", LetterGrade(59.999))
	assert.Equal(t, "F", LetterGrade(0))
}

func TestEvaluateBadgesIsPure(t *testing.T) {
	empty := models.StudentAggregate{AccountID: "stu-1"}
	assert.Empty(t, EvaluateBadges(empty))

	strong := models.StudentAggregate{
		AccountID:           "stu-1",
		Submissions:         12,
		GradedSubmissions:   10,
		DistinctCaseStudies: 6,
		MeanScore:           stats.Float(93.5),
		MaxScore:            stats.Float(100),
	}
	ids := make(map[string]bool)
	for _, badge := range EvaluateBadges(strong) {
		ids[badge.ID] = true
	}
	assert.True(t, ids["first_case"])
	assert.True(t, ids["case_explorer"])
	assert.True(t, ids["dedicated"])
	assert.True(t, ids["consistent"])
	assert.True(t, ids["high_achiever"])
	assert.True(t, ids["perfect_score"])

	// A regrade that drops the mean revokes threshold badges on the next
	// evaluation.
	regraded := strong
	regraded.MeanScore = stats.Float(71)
	ids = make(map[string]bool)
	for _, badge := range EvaluateBadges(regraded) {
		ids[badge.ID] = true
	}
	assert.False(t, ids["high_achiever"])
	assert.False(t, ids["consistent"])
	assert.True(t, ids["dedicated"])
}

func TestEvaluateStudentScoping(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &stubRecordStore{
		accounts: []models.Account{{ID: "stu-1", FullName: "Student One", Email: "one@mind.dev", Role: models.RoleStudent}},
		grades: []models.GradeRecord{
			gradeRecord("gr-1", "stu-1", "cs-1", stats.Float(95), base),
		},
	}
	svc := NewBadgeService(store, zap.NewNop())

	agg, badges, err := svc.EvaluateStudent(context.Background(), "stu-1", claimsFor(models.RoleStudent, "stu-1"))
	require.NoError(t, err)
	assert.Equal(t, "Student One", agg.FullName)
	assert.Equal(t, 1, agg.Submissions)
	require.NotNil(t, agg.MeanScore)
	assert.Equal(t, 95.0, *agg.MeanScore)

	ids := make(map[string]bool)
	for _, badge := range badges {
		ids[badge.ID] = true
	}
	assert.True(t, ids["first_case"])
	assert.True(t, ids["high_achiever"])

	_, _, err = svc.EvaluateStudent(context.Background(), "stu-1", claimsFor(models.RoleStudent, "stu-2"))
	requireCode(t, err, appErrors.ErrForbidden.Code)

	_, _, err = svc.EvaluateStudent(context.Background(), "stu-1", claimsFor(models.RoleDeveloper, "dev-1"))
	requireCode(t, err, appErrors.ErrForbidden.Code)

	// Faculty may evaluate any student.
	_, _, err = svc.EvaluateStudent(context.Background(), "stu-1", claimsFor(models.RoleFaculty, "fac-1"))
	assert.NoError(t, err)

	_, _, err = svc.EvaluateStudent(context.Background(), "missing", claimsFor(models.RoleAdmin, "adm-1"))
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestEvaluateStudentWithNoSubmissions(t *testing.T) {
	store := &stubRecordStore{
		accounts: []models.Account{{ID: "stu-1", FullName: "Student One", Role: models.RoleStudent}},
	}
	svc := NewBadgeService(store, zap.NewNop())

	agg, badges, err := svc.EvaluateStudent(context.Background(), "stu-1", claimsFor(models.RoleAdmin, "adm-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Submissions)
	assert.Nil(t, agg.MeanScore)
	assert.Empty(t, badges)
}
