package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/response"
)

type evaluationLifecycle interface {
	List(ctx context.Context, schoolID string, filter models.EvaluationFilter) ([]models.EvaluationDetail, *models.Pagination, error)
	Get(ctx context.Context, schoolID, id string) (*models.EvaluationDetail, error)
	Create(ctx context.Context, schoolID string, req service.CreateEvaluationRequest) (*models.EvaluationDetail, error)
	Update(ctx context.Context, schoolID, id string, req service.UpdateEvaluationRequest) (*models.EvaluationDetail, error)
	Finalize(ctx context.Context, schoolID, id string) (*models.EvaluationDetail, error)
	Delete(ctx context.Context, schoolID, id string) error
	BulkCreateTemplates(ctx context.Context, schoolID string, req service.BulkTemplatesRequest) (int, error)
	Stats(ctx context.Context, schoolID string, academicYear int, term string) (*models.EvaluationStats, error)
}

type performanceAggregator interface {
	ReportCard(ctx context.Context, schoolID, studentID string, academicYear int, term string) (*models.ReportCard, error)
	ClassPerformance(ctx context.Context, schoolID, classID string, filter models.EvaluationFilter) (*models.ClassPerformance, error)
}

// EvaluationHandler exposes the evaluation lifecycle endpoints.
type EvaluationHandler struct {
	evaluations evaluationLifecycle
	performance performanceAggregator
}

// NewEvaluationHandler constructs handler.
func NewEvaluationHandler(evaluations evaluationLifecycle, performance performanceAggregator) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations, performance: performance}
}

// List godoc
// @Summary List evaluations
// @Tags Evaluations
// @Produce json
// @Param classId query string false "Class ID"
// @Param studentId query string false "Student ID"
// @Param subject query string false "Subject"
// @Param term query string false "Term"
// @Param academicYear query int false "Academic year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.EvaluationFilter{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		Subject:   c.Query("subject"),
		Term:      c.Query("term"),
	}
	filter.AcademicYear, _ = strconv.Atoi(c.Query("academicYear"))
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if raw := c.Query("finalized"); raw != "" {
		finalized := raw == "true"
		filter.Finalized = &finalized
	}

	evaluations, pagination, err := h.evaluations.List(c.Request.Context(), claims.SchoolID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluations, pagination)
}

// Get godoc
// @Summary Get evaluation by ID
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	evaluation, err := h.evaluations.Get(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Create godoc
// @Summary Create draft evaluation
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body service.CreateEvaluationRequest true "Evaluation payload"
// @Success 201 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	evaluation, err := h.evaluations.Create(c.Request.Context(), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, evaluation)
}

// Update godoc
// @Summary Update draft evaluation
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Evaluation ID"
// @Param payload body service.UpdateEvaluationRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [put]
func (h *EvaluationHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	evaluation, err := h.evaluations.Update(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Finalize godoc
// @Summary Finalize evaluation
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id}/finalize [post]
func (h *EvaluationHandler) Finalize(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	evaluation, err := h.evaluations.Finalize(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Delete godoc
// @Summary Delete draft evaluation
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 204
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.evaluations.Delete(c.Request.Context(), claims.SchoolID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkCreate godoc
// @Summary Bulk create evaluation templates
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body service.BulkTemplatesRequest true "Bulk payload"
// @Success 201 {object} response.Envelope
// @Router /evaluations/bulk [post]
func (h *EvaluationHandler) BulkCreate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkTemplatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	count, err := h.evaluations.BulkCreateTemplates(c.Request.Context(), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"count": count})
}

// Stats godoc
// @Summary Evaluation volume statistics
// @Tags Evaluations
// @Produce json
// @Param academicYear query int false "Academic year"
// @Param term query string false "Term"
// @Success 200 {object} response.Envelope
// @Router /evaluations/stats [get]
func (h *EvaluationHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	academicYear, _ := strconv.Atoi(c.Query("academicYear"))
	stats, err := h.evaluations.Stats(c.Request.Context(), claims.SchoolID, academicYear, c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ReportCard godoc
// @Summary Student report card
// @Tags Evaluations
// @Produce json
// @Param studentId path string true "Student ID"
// @Param academicYear query int false "Academic year"
// @Param term query string false "Term"
// @Success 200 {object} response.Envelope
// @Router /evaluations/student/{studentId}/report-card [get]
func (h *EvaluationHandler) ReportCard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	academicYear, _ := strconv.Atoi(c.Query("academicYear"))
	card, err := h.performance.ReportCard(c.Request.Context(), claims.SchoolID, c.Param("studentId"), academicYear, c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// ClassPerformance godoc
// @Summary Class grade distribution
// @Tags Evaluations
// @Produce json
// @Param classId path string true "Class ID"
// @Param subject query string false "Subject"
// @Param term query string false "Term"
// @Param academicYear query int false "Academic year"
// @Success 200 {object} response.Envelope
// @Router /evaluations/class/{classId}/performance [get]
func (h *EvaluationHandler) ClassPerformance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.EvaluationFilter{
		Subject: c.Query("subject"),
		Term:    c.Query("term"),
	}
	filter.AcademicYear, _ = strconv.Atoi(c.Query("academicYear"))
	performance, err := h.performance.ClassPerformance(c.Request.Context(), claims.SchoolID, c.Param("classId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, performance, nil)
}
