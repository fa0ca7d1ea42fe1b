package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

type dashboardAggregator interface {
	Summary(ctx context.Context, schoolID string) (*models.DashboardSummary, error)
	ClassStrength(ctx context.Context, schoolID string) ([]models.ClassStrengthRow, error)
}

type attendanceAggregator interface {
	BuildReport(ctx context.Context, schoolID string, filter models.AttendanceFilter) (*models.AttendanceReport, error)
}

type financeAggregator interface {
	BuildReport(ctx context.Context, schoolID string, dateRange models.DateRange) (*models.FinancialReport, error)
}

// ReportHandler exposes the cross-entity reporting endpoints.
type ReportHandler struct {
	dashboard  dashboardAggregator
	attendance attendanceAggregator
	finance    financeAggregator
}

// NewReportHandler constructs handler.
func NewReportHandler(dashboard dashboardAggregator, attendance attendanceAggregator, finance financeAggregator) *ReportHandler {
	return &ReportHandler{dashboard: dashboard, attendance: attendance, finance: finance}
}

// Dashboard godoc
// @Summary Tenant dashboard summary
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.dashboard.Summary(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Attendance godoc
// @Summary Attendance report
// @Tags Reports
// @Produce json
// @Param classId query string false "Class ID"
// @Param date query string false "Single date (YYYY-MM-DD)"
// @Param month query int false "Month (1-12)"
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance [get]
func (h *ReportHandler) Attendance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.AttendanceFilter{ClassID: c.Query("classId")}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		filter.Date = &date
	}
	filter.Month, _ = strconv.Atoi(c.Query("month"))
	filter.Year, _ = strconv.Atoi(c.Query("year"))

	report, err := h.attendance.BuildReport(c.Request.Context(), claims.SchoolID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Finance godoc
// @Summary Monthly income and expense report
// @Tags Reports
// @Produce json
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end, exclusive (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/finance [get]
func (h *ReportHandler) Finance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var dateRange models.DateRange
	if raw := c.Query("startDate"); raw != "" {
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD"))
			return
		}
		dateRange.Start = start
	}
	if raw := c.Query("endDate"); raw != "" {
		end, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD"))
			return
		}
		dateRange.End = end
	}

	report, err := h.finance.BuildReport(c.Request.Context(), claims.SchoolID, dateRange)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ClassStrength godoc
// @Summary Per-class roster strength
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/class-strength [get]
func (h *ReportHandler) ClassStrength(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.dashboard.ClassStrength(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
