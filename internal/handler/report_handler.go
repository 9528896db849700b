package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

type reportService interface {
	CountToday(ctx context.Context) (*dto.VisitorCount, error)
	CountAllTime(ctx context.Context) (*dto.TotalVisitors, error)
	CountCurrentlyInside(ctx context.Context) (*dto.CurrentlyInside, error)
	CountByLevel(ctx context.Context, scope dto.LevelScope) (*models.LevelTotals, bool, error)
	WeeklyBreakdown(ctx context.Context) (*models.WeeklyBreakdown, bool, error)
}

// ReportHandler serves dashboard counters.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// VisitorsToday godoc
// @Summary Visits recorded today
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/total-visitors-today [get]
func (h *ReportHandler) VisitorsToday(c *gin.Context) {
	count, err := h.reports.CountToday(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}

// TotalVisitors godoc
// @Summary Visits recorded across all dates
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/total-visitors [get]
func (h *ReportHandler) TotalVisitors(c *gin.Context) {
	count, err := h.reports.CountAllTime(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}

// CurrentlyInside godoc
// @Summary Visits without a check-out
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/currently-inside [get]
func (h *ReportHandler) CurrentlyInside(c *gin.Context) {
	count, err := h.reports.CountCurrentlyInside(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}

// ByLevel godoc
// @Summary College and junior high totals
// @Tags Reports
// @Produce json
// @Param scope query string false "today or all" default(all)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/by-level [get]
func (h *ReportHandler) ByLevel(c *gin.Context) {
	scope := dto.LevelScope(c.DefaultQuery("scope", string(dto.LevelScopeAll)))
	if scope != dto.LevelScopeAll && scope != dto.LevelScopeToday {
		response.Error(c, appErrors.WithField(appErrors.ErrValidation, "scope", "The selected scope is invalid."))
		return
	}
	totals, hit, err := h.reports.CountByLevel(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, totals, nil, middleware.ExtractMeta(c))
}

// Weekly godoc
// @Summary Per-weekday level totals for the current week
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/weekly-attendance [get]
func (h *ReportHandler) Weekly(c *gin.Context) {
	weekly, hit, err := h.reports.WeeklyBreakdown(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, weekly, nil, middleware.ExtractMeta(c))
}
