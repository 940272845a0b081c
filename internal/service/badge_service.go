package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/stats"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

// badgeRules is the fixed badge catalog. Badges are pure classifications over
// a student's current aggregate; they are re-evaluated on every request and
// never stored as earned-once state, so regraded work can revoke them.
var badgeRules = []struct {
	ID     string
	Label  string
	Earned func(models.StudentAggregate) bool
}{
	{ID: "first_case", Label: "First Case Study", Earned: func(a models.StudentAggregate) bool {
		return a.Submissions >= 1
	}},
	{ID: "case_explorer", Label: "Case Explorer", Earned: func(a models.StudentAggregate) bool {
		return a.DistinctCaseStudies >= 5
	}},
	{ID: "dedicated", Label: "Dedicated Learner", Earned: func(a models.StudentAggregate) bool {
		return a.Submissions >= 10
	}},
	{ID: "consistent", Label: "Consistent Performer", Earned: func(a models.StudentAggregate) bool {
		return a.GradedSubmissions >= 5 && a.MeanScore != nil && *a.MeanScore >= 75
	}},
	{ID: "high_achiever", Label: "High Achiever", Earned: func(a models.StudentAggregate) bool {
		return a.MeanScore != nil && *a.MeanScore >= 90
	}},
	{ID: "perfect_score", Label: "Perfect Score", Earned: func(a models.StudentAggregate) bool {
		return a.MaxScore != nil && *a.MaxScore >= 100
	}},
}

// EvaluateBadges returns the badges a student currently holds given their
// aggregate. Pure; no clock, no stored state.
func EvaluateBadges(agg models.StudentAggregate) []models.Badge {
	badges := make([]models.Badge, 0, len(badgeRules))
	for _, rule := range badgeRules {
		if rule.Earned(agg) {
			badges = append(badges, models.Badge{ID: rule.ID, Label: rule.Label})
		}
	}
	return badges
}

// LetterGrade maps a numeric score onto its letter grade.
func LetterGrade(score float64) string {
	return stats.HistogramBucket(score, gradeBoundaries)
}

// BadgeService evaluates badge classifications for individual students.
type BadgeService struct {
	store  RecordStore
	logger *zap.Logger
}

// NewBadgeService constructs the badge service.
func NewBadgeService(store RecordStore, logger *zap.Logger) *BadgeService {
	return &BadgeService{store: store, logger: logger}
}

// EvaluateStudent loads a student's full grade history and returns their
// aggregate together with the badges it currently earns. Students may only
// evaluate themselves.
func (s *BadgeService) EvaluateStudent(ctx context.Context, accountID string, claims *models.JWTClaims) (*models.StudentAggregate, []models.Badge, error) {
	if claims == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity")
	}
	if claims.Role == models.RoleStudent && claims.UserID != accountID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own badges")
	}
	if claims.Role == models.RoleDeveloper {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "badges are not available to role DEVELOPER")
	}

	accounts, err := s.store.Accounts(ctx, models.AccountFilter{ID: accountID})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrDataUnavailable.Code, appErrors.ErrDataUnavailable.Status, appErrors.ErrDataUnavailable.Message)
	}
	if len(accounts) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "account "+accountID+" not found")
	}

	records, err := s.store.GradeRecords(ctx, models.GradeFilter{OwnerID: accountID})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrDataUnavailable.Code, appErrors.ErrDataUnavailable.Status, appErrors.ErrDataUnavailable.Message)
	}

	index := map[string]models.Account{accountID: accounts[0]}
	aggregates := aggregateStudents(records, index)

	agg := models.StudentAggregate{
		AccountID: accountID,
		FullName:  accounts[0].FullName,
		Email:     accounts[0].Email,
	}
	if len(aggregates) > 0 {
		agg = aggregates[0]
	}

	return &agg, EvaluateBadges(agg), nil
}
