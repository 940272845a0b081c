package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mind-platform/mind-analytics-api/internal/dto"
	"github.com/mind-platform/mind-analytics-api/internal/middleware"
	"github.com/mind-platform/mind-analytics-api/internal/service"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
	"github.com/mind-platform/mind-analytics-api/pkg/export"
	"github.com/mind-platform/mind-analytics-api/pkg/response"
)

// MetricHandler exposes the metric catalog over HTTP.
type MetricHandler struct {
	metrics        *service.MetricService
	badges         *service.BadgeService
	system         *service.MetricsService
	csv            *export.CSVExporter
	pdf            *export.PDFExporter
	exportsEnabled bool
	logger         *zap.Logger
}

// NewMetricHandler constructs the handler.
func NewMetricHandler(
	metrics *service.MetricService,
	badges *service.BadgeService,
	system *service.MetricsService,
	csv *export.CSVExporter,
	pdf *export.PDFExporter,
	exportsEnabled bool,
	logger *zap.Logger,
) *MetricHandler {
	return &MetricHandler{
		metrics:        metrics,
		badges:         badges,
		system:         system,
		csv:            csv,
		pdf:            pdf,
		exportsEnabled: exportsEnabled,
		logger:         logger,
	}
}

// Catalog godoc
// @Summary List metrics visible to the caller
// @Tags metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics [get]
func (h *MetricHandler) Catalog(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity"))
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Catalog(claims), nil)
}

// Resolve godoc
// @Summary Resolve a metric
// @Tags metrics
// @Produce json
// @Param id path string true "Metric id"
// @Param window query string false "Time window token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /metrics/{id} [get]
func (h *MetricHandler) Resolve(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity"))
		return
	}

	var query dto.MetricQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	params, err := query.ToParams()
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now()
	result, err := h.metrics.Resolve(c.Request.Context(), c.Param("id"), params, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{
		"cache_hit":          result.FromCache,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// Export godoc
// @Summary Export a table metric as CSV or PDF
// @Tags metrics
// @Produce text/csv,application/pdf
// @Param id path string true "Metric id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /metrics/{id}/export [get]
func (h *MetricHandler) Export(c *gin.Context) {
	if !h.exportsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled"))
		return
	}
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity"))
		return
	}

	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	format := strings.ToLower(query.Format)
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}

	params, err := query.ToParams()
	if err != nil {
		response.Error(c, err)
		return
	}

	metricID := c.Param("id")
	result, err := h.metrics.ResolveTable(c.Request.Context(), metricID, params, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset, err := export.FromTable(result.Table)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export rendering failed"))
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", strings.ReplaceAll(metricID, ".", "_"), time.Now().UTC().Format("20060102T150405"), format)
	var payload []byte
	var contentType string
	switch format {
	case "pdf":
		payload, err = h.pdf.Render(dataset, result.Label)
		contentType = "application/pdf"
	default:
		payload, err = h.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export rendering failed"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

// StudentBadges godoc
// @Summary Evaluate a student's badges
// @Tags badges
// @Produce json
// @Param id path string true "Account id"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/badges [get]
func (h *MetricHandler) StudentBadges(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity"))
		return
	}

	aggregate, badges, err := h.badges.EvaluateStudent(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BadgeResponse{Student: aggregate, Badges: badges}, nil)
}

// SystemMetrics godoc
// @Summary Engine instrumentation snapshot
// @Tags system
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/metrics [get]
func (h *MetricHandler) SystemMetrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.system.Snapshot(), nil)
}

// InvalidateCache godoc
// @Summary Drop cached metric results
// @Tags admin
// @Accept json
// @Produce json
// @Success 204
// @Router /admin/cache/invalidate [post]
func (h *MetricHandler) InvalidateCache(c *gin.Context) {
	var req dto.InvalidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
			return
		}
	}

	if err := h.metrics.Invalidate(c.Request.Context(), req.MetricID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
