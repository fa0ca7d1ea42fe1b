package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-api/internal/middleware"
	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/service"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/jobs"
)

type exportServiceMock struct {
	job         *models.ExportJob
	enqueueErr  error
	statusErr   error
	file        *os.File
	filename    string
	downloadErr error
}

func (m *exportServiceMock) Enqueue(context.Context, *jobs.Queue, string, string, service.ExportRequest) (*models.ExportJob, error) {
	return m.job, m.enqueueErr
}

func (m *exportServiceMock) GetJob(context.Context, string, string) (*models.ExportJob, error) {
	return m.job, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(string) (*os.File, string, error) {
	return m.file, m.filename, m.downloadErr
}

func TestExportHandlerCreateAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{job: &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}}
	h := NewExportHandler(mockSvc, nil)

	payload, _ := json.Marshal(service.ExportRequest{StudentID: "student-1", Format: models.ExportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/exports/report-card", payload)
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	var envelope struct {
		Data models.ExportJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "job-1", envelope.Data.ID)
	require.Equal(t, models.ExportStatusQueued, envelope.Data.Status)
}

func TestExportHandlerCreateUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewExportHandler(&exportServiceMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/exports/report-card", nil)

	h.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{job: &models.ExportJob{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100}}
	h := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExportHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{statusErr: appErrors.Clone(appErrors.ErrNotFound, "export job not found")}
	h := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/exports/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	c.Set(middleware.ContextUserKey, tenantClaims())

	h.Status(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerDownloadStreamsFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "card*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("Subject,Grade\nMath,A\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &exportServiceMock{file: file, filename: "job-1.csv"}
	h := NewExportHandler(mockSvc, nil)

	// No claims set: the signed token is the only credential.
	c, w := newGinContext(http.MethodGet, "/exports/download/token-1", nil)
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "job-1.csv")
	require.Contains(t, w.Body.String(), "Math,A")
}

func TestExportHandlerDownloadRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}
	h := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/exports/download/garbage", nil)
	c.Params = gin.Params{{Key: "token", Value: "garbage"}}

	h.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
