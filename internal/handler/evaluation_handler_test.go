package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-api/internal/middleware"
	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type evaluationServiceMock struct {
	list       []models.EvaluationDetail
	pagination *models.Pagination
	detail     *models.EvaluationDetail
	bulkCount  int
	stats      *models.EvaluationStats
	err        error

	lastFilter models.EvaluationFilter
	lastSchool string
}

func (m *evaluationServiceMock) List(_ context.Context, schoolID string, filter models.EvaluationFilter) ([]models.EvaluationDetail, *models.Pagination, error) {
	m.lastSchool = schoolID
	m.lastFilter = filter
	return m.list, m.pagination, m.err
}

func (m *evaluationServiceMock) Get(context.Context, string, string) (*models.EvaluationDetail, error) {
	return m.detail, m.err
}

func (m *evaluationServiceMock) Create(context.Context, string, service.CreateEvaluationRequest) (*models.EvaluationDetail, error) {
	return m.detail, m.err
}

func (m *evaluationServiceMock) Update(context.Context, string, string, service.UpdateEvaluationRequest) (*models.EvaluationDetail, error) {
	return m.detail, m.err
}

func (m *evaluationServiceMock) Finalize(context.Context, string, string) (*models.EvaluationDetail, error) {
	return m.detail, m.err
}

func (m *evaluationServiceMock) Delete(context.Context, string, string) error {
	return m.err
}

func (m *evaluationServiceMock) BulkCreateTemplates(context.Context, string, service.BulkTemplatesRequest) (int, error) {
	return m.bulkCount, m.err
}

func (m *evaluationServiceMock) Stats(context.Context, string, int, string) (*models.EvaluationStats, error) {
	return m.stats, m.err
}

type performanceServiceMock struct {
	card        *models.ReportCard
	performance *models.ClassPerformance
	err         error
}

func (m *performanceServiceMock) ReportCard(context.Context, string, string, int, string) (*models.ReportCard, error) {
	return m.card, m.err
}

func (m *performanceServiceMock) ClassPerformance(context.Context, string, string, models.EvaluationFilter) (*models.ClassPerformance, error) {
	return m.performance, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func tenantClaims() *models.TenantClaims {
	return &models.TenantClaims{SchoolID: "school-1", UserID: "user-1", Role: models.RoleAdmin}
}

func TestEvaluationHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &evaluationServiceMock{list: []models.EvaluationDetail{}, pagination: models.NewPagination(2, 10, 0)}
	h := NewEvaluationHandler(mockSvc, &performanceServiceMock{})

	c, w := newGinContext(http.MethodGet, "/evaluations?classId=class-1&finalized=true&page=2&limit=10", nil)
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "school-1", mockSvc.lastSchool)
	require.Equal(t, "class-1", mockSvc.lastFilter.ClassID)
	require.NotNil(t, mockSvc.lastFilter.Finalized)
	require.True(t, *mockSvc.lastFilter.Finalized)
	require.Equal(t, 2, mockSvc.lastFilter.Page)
	require.Equal(t, 10, mockSvc.lastFilter.Limit)
}

func TestEvaluationHandlerRejectsMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEvaluationHandler(&evaluationServiceMock{}, &performanceServiceMock{})

	c, w := newGinContext(http.MethodGet, "/evaluations", nil)

	h.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEvaluationHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &evaluationServiceMock{detail: &models.EvaluationDetail{Evaluation: models.Evaluation{ID: "eval-1"}}}
	h := NewEvaluationHandler(mockSvc, &performanceServiceMock{})

	payload, _ := json.Marshal(service.CreateEvaluationRequest{
		StudentID: "student-1",
		ClassID:   "class-1",
		Subject:   "Math",
		Term:      "term-1",
	})
	c, w := newGinContext(http.MethodPost, "/evaluations", payload)
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestEvaluationHandlerCreateBadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEvaluationHandler(&evaluationServiceMock{}, &performanceServiceMock{})

	c, w := newGinContext(http.MethodPost, "/evaluations", []byte("{not json"))
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluationHandlerUpdateImmutable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &evaluationServiceMock{err: appErrors.ErrImmutable}
	h := NewEvaluationHandler(mockSvc, &performanceServiceMock{})

	payload, _ := json.Marshal(service.UpdateEvaluationRequest{})
	c, w := newGinContext(http.MethodPut, "/evaluations/eval-1", payload)
	c.Params = gin.Params{{Key: "id", Value: "eval-1"}}
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Update(c)
	require.Equal(t, appErrors.ErrImmutable.Status, w.Code)
}

func TestEvaluationHandlerFinalize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &evaluationServiceMock{detail: &models.EvaluationDetail{Evaluation: models.Evaluation{ID: "eval-1", IsFinalized: true}}}
	h := NewEvaluationHandler(mockSvc, &performanceServiceMock{})

	c, w := newGinContext(http.MethodPost, "/evaluations/eval-1/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: "eval-1"}}
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Finalize(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEvaluationHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEvaluationHandler(&evaluationServiceMock{}, &performanceServiceMock{})

	c, w := newGinContext(http.MethodDelete, "/evaluations/eval-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "eval-1"}}
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Delete(c)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestEvaluationHandlerBulkCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &evaluationServiceMock{bulkCount: 30}
	h := NewEvaluationHandler(mockSvc, &performanceServiceMock{})

	payload, _ := json.Marshal(service.BulkTemplatesRequest{ClassID: "class-1", Subject: "Math", Term: "term-1"})
	c, w := newGinContext(http.MethodPost, "/evaluations/bulk", payload)
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.BulkCreate(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 30, envelope.Data["count"])
}

func TestEvaluationHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &evaluationServiceMock{stats: &models.EvaluationStats{Total: 10, Finalized: 7, Draft: 3}}
	h := NewEvaluationHandler(mockSvc, &performanceServiceMock{})

	c, w := newGinContext(http.MethodGet, "/evaluations/stats?academicYear=2026", nil)
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Stats(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEvaluationHandlerReportCardNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	perf := &performanceServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "no finalized evaluations for student")}
	h := NewEvaluationHandler(&evaluationServiceMock{}, perf)

	c, w := newGinContext(http.MethodGet, "/evaluations/student/student-1/report-card", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.ReportCard(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluationHandlerClassPerformance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	perf := &performanceServiceMock{performance: &models.ClassPerformance{TotalStudents: 4}}
	h := NewEvaluationHandler(&evaluationServiceMock{}, perf)

	c, w := newGinContext(http.MethodGet, "/evaluations/class/class-1/performance?term=term-1", nil)
	c.Params = gin.Params{{Key: "classId", Value: "class-1"}}
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.ClassPerformance(c)
	require.Equal(t, http.StatusOK, w.Code)
}
