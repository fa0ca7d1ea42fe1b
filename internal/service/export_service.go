package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/repository"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
	"github.com/edupulse/edupulse-api/pkg/export"
	"github.com/edupulse/edupulse-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, schoolID, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type reportCardBuilder interface {
	ReportCard(ctx context.Context, schoolID, studentID string, academicYear int, term string) (*models.ReportCard, error)
}

type exportFileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (string, string, time.Time, error)
}

// ExportRequest asks for a report card rendered to a file.
type ExportRequest struct {
	StudentID    string              `json:"student_id" validate:"required"`
	AcademicYear int                 `json:"academic_year" validate:"omitempty,gte=2000,lte=2100"`
	Term         string              `json:"term"`
	Format       models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportService renders report cards to CSV or PDF asynchronously. Jobs are
// persisted, processed by a worker pool, and downloaded via signed tokens so
// export files need no authenticated session to fetch.
type ExportService struct {
	store     exportJobStore
	reports   reportCardBuilder
	files     exportFileStore
	signer    downloadSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs ExportService.
func NewExportService(store exportJobStore, reports reportCardBuilder, files exportFileStore, signer downloadSigner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:     store,
		reports:   reports,
		files:     files,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue persists a queued job and hands it to the worker queue.
func (s *ExportService) Enqueue(ctx context.Context, queue *jobs.Queue, schoolID, createdBy string, req ExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	academicYear := req.AcademicYear
	if academicYear == 0 {
		academicYear = s.now().Year()
	}

	job := &models.ExportJob{
		SchoolID:     schoolID,
		StudentID:    req.StudentID,
		AcademicYear: academicYear,
		Term:         req.Term,
		Format:       req.Format,
		Status:       models.ExportStatusQueued,
		CreatedBy:    createdBy,
		CreatedAt:    s.now(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue export: %w", err)
	}
	if err := queue.Enqueue(jobs.Job{ID: job.ID, Type: "report_card_export", Payload: *job}); err != nil {
		message := err.Error()
		failed := models.ExportStatusFailed
		if updateErr := s.store.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &failed, ErrorMessage: &message}); updateErr != nil {
			s.logger.Error("mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, fmt.Errorf("enqueue export: %w", err)
	}
	s.logger.Info("export job queued",
		zap.String("job_id", job.ID),
		zap.String("school_id", schoolID),
		zap.String("format", string(job.Format)))
	return job, nil
}

// GetJob returns job status for polling clients.
func (s *ExportService) GetJob(ctx context.Context, schoolID, id string) (*models.ExportJob, error) {
	job, err := s.store.GetByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, fmt.Errorf("get export job: %w", err)
	}
	return job, nil
}

// RequeuePending re-enqueues jobs that were still queued when the process
// last stopped. Called once at startup after the worker queue is running.
func (s *ExportService) RequeuePending(ctx context.Context, queue *jobs.Queue, limit int) int {
	pending, err := s.store.ListQueued(ctx, limit)
	if err != nil {
		s.logger.Warn("list pending export jobs", zap.Error(err))
		return 0
	}

	requeued := 0
	for _, job := range pending {
		if err := queue.Enqueue(jobs.Job{ID: job.ID, Type: "report_card_export", Payload: job}); err != nil {
			s.logger.Warn("requeue export job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		requeued++
	}
	if requeued > 0 {
		s.logger.Info("requeued pending export jobs", zap.Int("count", requeued))
	}
	return requeued
}

// Handle processes one queued export job. It is the worker queue handler.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(models.ExportJob)
	if !ok {
		s.logger.Error("export job payload has wrong type", zap.String("job_id", job.ID))
		return nil
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := s.store.Update(ctx, payload.ID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}

	if err := s.process(ctx, payload); err != nil {
		message := err.Error()
		failed := models.ExportStatusFailed
		finishedAt := s.now()
		if updateErr := s.store.Update(ctx, payload.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &message,
			FinishedAt:   &finishedAt,
		}); updateErr != nil {
			s.logger.Error("mark export job failed", zap.String("job_id", payload.ID), zap.Error(updateErr))
		}
		if s.metrics != nil {
			s.metrics.RecordExportJob(string(models.ExportStatusFailed))
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordExportJob(string(models.ExportStatusFinished))
	}
	return nil
}

func (s *ExportService) process(ctx context.Context, job models.ExportJob) error {
	card, err := s.reports.ReportCard(ctx, job.SchoolID, job.StudentID, job.AcademicYear, job.Term)
	if err != nil {
		return fmt.Errorf("build report card: %w", err)
	}

	dataset := reportCardDataset(card)
	var rendered []byte
	switch job.Format {
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(dataset, fmt.Sprintf("Report Card - %s", card.Student.FullName))
	default:
		rendered, err = s.csv.Render(dataset)
	}
	if err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	relPath := filepath.Join(job.SchoolID, fmt.Sprintf("%s.%s", job.ID, job.Format))
	if _, err := s.files.Save(relPath, rendered); err != nil {
		return fmt.Errorf("store export: %w", err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign export url: %w", err)
	}
	resultURL := "/api/v1/exports/download/" + token

	finished := models.ExportStatusFinished
	progress := 100
	finishedAt := s.now()
	if err := s.store.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		Progress:   &progress,
		ResultURL:  &resultURL,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("mark export finished: %w", err)
	}
	s.logger.Info("export job finished", zap.String("job_id", job.ID), zap.String("path", relPath))
	return nil
}

// ResolveDownload validates a signed token and opens the stored file.
func (s *ExportService) ResolveDownload(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, filepath.Base(relPath), nil
}

// StartCleanup prunes stored export files on an interval until ctx ends.
func (s *ExportService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.files.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("export files pruned", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

func reportCardDataset(card *models.ReportCard) export.Dataset {
	headers := []string{"Subject", "Term", "Type", "Grade", "Attendance %", "Remarks"}
	rows := make([]map[string]string, 0, len(card.Evaluations))
	for _, evaluation := range card.Evaluations {
		grade := ""
		if evaluation.OverallGrade != nil {
			grade = string(*evaluation.OverallGrade)
		}
		attendance := ""
		if evaluation.Attendance.Percentage != nil {
			attendance = fmt.Sprintf("%.2f", *evaluation.Attendance.Percentage)
		}
		remarks := ""
		if evaluation.OverallRemarks != nil {
			remarks = *evaluation.OverallRemarks
		}
		rows = append(rows, map[string]string{
			"Subject":      evaluation.Subject,
			"Term":         evaluation.Term,
			"Type":         string(evaluation.EvaluationType),
			"Grade":        grade,
			"Attendance %": attendance,
			"Remarks":      remarks,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
