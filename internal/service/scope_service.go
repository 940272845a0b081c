package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
)

// ScopeService turns caller parameters into the effective filter set a
// metric is computed under. Scoping is explicit per request; there is no
// ambient current-user state anywhere below this layer. Cross-tenant
// narrowing is enforced here, never silently ignored.
type ScopeService struct {
	defaultThreshold float64
	logger           *zap.Logger
}

// NewScopeService constructs the scope service.
func NewScopeService(defaultThreshold float64, logger *zap.Logger) *ScopeService {
	return &ScopeService{defaultThreshold: defaultThreshold, logger: logger}
}

// Scope validates role access and resolves caller parameters into canonical
// effective filters. Fields a metric cannot use are cleared so equivalent
// requests serialize to identical cache keys.
func (s *ScopeService) Scope(def *MetricDefinition, params models.MetricParams, claims *models.JWTClaims) (models.EffectiveFilters, error) {
	if claims == nil {
		return models.EffectiveFilters{}, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity")
	}
	if !def.VisibleTo(claims.Role) {
		return models.EffectiveFilters{}, appErrors.Clone(appErrors.ErrForbidden, "metric "+def.ID+" is not available to role "+string(claims.Role))
	}

	window := params.Window
	if window == "" {
		window = def.DefaultWindow
	}
	if !def.AllowsWindow(window) {
		return models.EffectiveFilters{}, appErrors.Clone(appErrors.ErrValidation, "window "+window+" is not supported by metric "+def.ID)
	}
	if window == models.WindowCustom {
		if params.From == nil || params.To == nil {
			return models.EffectiveFilters{}, appErrors.Clone(appErrors.ErrValidation, "custom window requires both from and to")
		}
		if !params.From.Before(*params.To) {
			return models.EffectiveFilters{}, appErrors.Clone(appErrors.ErrValidation, "from must precede to")
		}
	} else if params.From != nil || params.To != nil {
		return models.EffectiveFilters{}, appErrors.Clone(appErrors.ErrValidation, "from and to are only valid with window=custom")
	}

	f := models.EffectiveFilters{Window: window}
	if window == models.WindowCustom {
		utcFrom := params.From.UTC()
		utcTo := params.To.UTC()
		f.From = &utcFrom
		f.To = &utcTo
	}

	switch claims.Role {
	case models.RoleStudent:
		// Students are hard-bound to their own records. Asking for another
		// owner is an authorization failure, not an empty result.
		if params.OwnerID != "" && params.OwnerID != claims.UserID {
			return models.EffectiveFilters{}, appErrors.Clone(appErrors.ErrForbidden, "students may only query their own records")
		}
		f.OwnerID = claims.UserID
	case models.RoleDeveloper:
		// Developer visibility is telemetry-only; identity filters do not
		// apply to telemetry records.
	default:
		f.OwnerID = params.OwnerID
		f.Department = params.Department
		f.Cohort = params.Cohort
	}

	// Dimensions outside the metric's record class are dropped so they never
	// fragment the cache.
	switch def.Class {
	case models.ClassGrades:
		f.CaseStudyID = params.CaseStudyID
	case models.ClassAccounts:
		f.OwnerID = ""
	case models.ClassTelemetry:
		f.OwnerID = ""
		f.Department = ""
		f.Cohort = ""
	}

	if def.Kind == models.KindSeries {
		f.Granularity = params.Granularity
		if f.Granularity == "" {
			f.Granularity = defaultGranularity(window)
		}
	}

	if def.SupportsThreshold {
		f.Threshold = s.defaultThreshold
		if params.Threshold != nil {
			f.Threshold = *params.Threshold
		}
	}

	if def.DefaultPercentile > 0 {
		f.Percentile = def.DefaultPercentile
		if params.Percentile != nil {
			f.Percentile = *params.Percentile
		}
	}

	if def.DefaultLimit > 0 {
		f.Limit = def.DefaultLimit
		if params.Limit > 0 {
			f.Limit = params.Limit
		}
	}

	if def.SupportsSearch {
		f.Search = strings.TrimSpace(params.Search)
	}

	return f, nil
}

func defaultGranularity(window string) models.Granularity {
	switch window {
	case models.WindowToday:
		return models.GranularityHour
	case models.Window7d, models.Window30d, models.WindowCustom:
		return models.GranularityDay
	default:
		return models.GranularityWeek
	}
}
