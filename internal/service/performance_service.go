package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type finalizedEvaluationReader interface {
	ListFinalizedByClass(ctx context.Context, schoolID, classID string, filter models.EvaluationFilter) ([]models.EvaluationDetail, error)
	ListFinalizedByStudent(ctx context.Context, schoolID, studentID string, academicYear int, term string) ([]models.EvaluationDetail, error)
}

type studentReader interface {
	FindStudent(ctx context.Context, schoolID, studentID string) (*models.ReportCardStudent, error)
}

// PerformanceService aggregates finalized evaluations into class-level grade
// distributions and per-student report cards. Drafts never contribute.
type PerformanceService struct {
	evaluations finalizedEvaluationReader
	students    studentReader
	cache       *CacheService
	metrics     *MetricsService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewPerformanceService constructs PerformanceService.
func NewPerformanceService(evaluations finalizedEvaluationReader, students studentReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{
		evaluations: evaluations,
		students:    students,
		cache:       cache,
		metrics:     metrics,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// ClassPerformance builds the grade distribution for a class. Every bucket
// appears in the map even at zero; ungraded evaluations count toward the
// total but no bucket, so bucket sums may fall short of the total.
func (s *PerformanceService) ClassPerformance(ctx context.Context, schoolID, classID string, filter models.EvaluationFilter) (*models.ClassPerformance, error) {
	key := fmt.Sprintf("reports:%s:performance:%s:%s:%s:%d", schoolID, classID, filter.Subject, filter.Term, filter.AcademicYear)
	if s.cache != nil {
		var cached models.ClassPerformance
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	start := time.Now()
	evaluations, err := s.evaluations.ListFinalizedByClass(ctx, schoolID, classID, filter)
	if err != nil {
		return nil, fmt.Errorf("class performance: %w", err)
	}
	if evaluations == nil {
		evaluations = []models.EvaluationDetail{}
	}

	distribution := make(map[models.GradeLetter]int, len(models.GradeLetters))
	for _, letter := range models.GradeLetters {
		distribution[letter] = 0
	}
	for i := range evaluations {
		if grade := GradeBucket(&evaluations[i].Evaluation); grade != nil {
			distribution[*grade]++
		}
	}

	performance := &models.ClassPerformance{
		TotalStudents:     len(evaluations),
		GradeDistribution: distribution,
		Evaluations:       evaluations,
	}
	if s.metrics != nil {
		s.metrics.ObserveReportBuild("class_performance", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, performance, s.cacheTTL); err != nil {
			s.logger.Warn("class performance cache store failed", zap.Error(err))
		}
	}
	return performance, nil
}

// ReportCard assembles a student's finalized evaluations for a year and
// optional term. A student with no finalized evaluations in scope yields a
// not-found error rather than an empty card.
func (s *PerformanceService) ReportCard(ctx context.Context, schoolID, studentID string, academicYear int, term string) (*models.ReportCard, error) {
	student, err := s.students.FindStudent(ctx, schoolID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("report card student: %w", err)
	}

	evaluations, err := s.evaluations.ListFinalizedByStudent(ctx, schoolID, studentID, academicYear, term)
	if err != nil {
		return nil, fmt.Errorf("report card evaluations: %w", err)
	}
	if len(evaluations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no finalized evaluations for student")
	}

	subjects := make(map[string]struct{}, len(evaluations))
	for _, evaluation := range evaluations {
		subjects[evaluation.Subject] = struct{}{}
	}

	return &models.ReportCard{
		Student:       *student,
		Evaluations:   evaluations,
		AcademicYear:  academicYear,
		Term:          term,
		TotalSubjects: len(subjects),
	}, nil
}
