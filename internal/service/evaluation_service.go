package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	"github.com/edupulse/edupulse-api/internal/repository"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type evaluationRepo interface {
	List(ctx context.Context, schoolID string, filter models.EvaluationFilter) ([]models.EvaluationDetail, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.EvaluationDetail, error)
	Insert(ctx context.Context, evaluation *models.Evaluation) error
	InsertBatch(ctx context.Context, evaluations []models.Evaluation) error
	Update(ctx context.Context, schoolID, id string, params repository.UpdateEvaluationParams) (int64, error)
	Finalize(ctx context.Context, schoolID, id string, at time.Time) (int64, error)
	Delete(ctx context.Context, schoolID, id string) (int64, error)
	CountsByState(ctx context.Context, schoolID string, academicYear int, term string) (int, int, error)
	GroupCounts(ctx context.Context, schoolID, groupBy string, academicYear int, term string) ([]models.GroupCount, error)
}

type enrollmentReader interface {
	ListActiveStudentIDs(ctx context.Context, schoolID, classID string) ([]string, error)
}

type reportCacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CreateEvaluationRequest is the payload for creating a draft evaluation.
type CreateEvaluationRequest struct {
	StudentID             string                  `json:"student_id" validate:"required"`
	ClassID               string                  `json:"class_id" validate:"required"`
	Subject               string                  `json:"subject" validate:"required"`
	Term                  string                  `json:"term" validate:"required"`
	AcademicYear          int                     `json:"academic_year" validate:"omitempty,gte=2000,lte=2100"`
	EvaluationType        models.EvaluationType   `json:"evaluation_type" validate:"omitempty"`
	EvaluationDate        *time.Time              `json:"evaluation_date"`
	EvaluatedBy           *string                 `json:"evaluated_by"`
	Skills                models.SkillList        `json:"skills" validate:"omitempty,dive"`
	Behavior              models.BehaviorRatings  `json:"behavior"`
	OverallGrade          *models.GradeLetter     `json:"overall_grade"`
	OverallRemarks        *string                 `json:"overall_remarks"`
	Strengths             []string                `json:"strengths"`
	AreasOfImprovement    []string                `json:"areas_of_improvement"`
	AttendanceTotalDays   *int                    `json:"attendance_total_days" validate:"omitempty,gte=0"`
	AttendancePresentDays *int                    `json:"attendance_present_days" validate:"omitempty,gte=0"`
}

// UpdateEvaluationRequest is the patch payload for a draft evaluation. Nil
// fields are left untouched.
type UpdateEvaluationRequest struct {
	Subject               *string                 `json:"subject"`
	Term                  *string                 `json:"term"`
	AcademicYear          *int                    `json:"academic_year" validate:"omitempty,gte=2000,lte=2100"`
	EvaluationType        *models.EvaluationType  `json:"evaluation_type"`
	EvaluationDate        *time.Time              `json:"evaluation_date"`
	EvaluatedBy           *string                 `json:"evaluated_by"`
	Skills                *models.SkillList       `json:"skills" validate:"omitempty,dive"`
	Behavior              *models.BehaviorRatings `json:"behavior"`
	OverallGrade          *models.GradeLetter     `json:"overall_grade"`
	OverallRemarks        *string                 `json:"overall_remarks"`
	Strengths             *[]string               `json:"strengths"`
	AreasOfImprovement    *[]string               `json:"areas_of_improvement"`
	AttendanceTotalDays   *int                    `json:"attendance_total_days" validate:"omitempty,gte=0"`
	AttendancePresentDays *int                    `json:"attendance_present_days" validate:"omitempty,gte=0"`
}

// BulkTemplatesRequest creates one blank draft per enrolled student.
type BulkTemplatesRequest struct {
	ClassID        string                `json:"class_id" validate:"required"`
	Subject        string                `json:"subject" validate:"required"`
	Term           string                `json:"term" validate:"required"`
	AcademicYear   int                   `json:"academic_year" validate:"omitempty,gte=2000,lte=2100"`
	EvaluationType models.EvaluationType `json:"evaluation_type" validate:"omitempty"`
}

// EvaluationService owns the evaluation lifecycle: drafts are created,
// patched and deleted freely; finalization is a one-way transition after
// which the record is immutable.
type EvaluationService struct {
	evaluations evaluationRepo
	enrollments enrollmentReader
	cache       reportCacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEvaluationService constructs EvaluationService.
func NewEvaluationService(evaluations evaluationRepo, enrollments enrollmentReader, cache reportCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		evaluations: evaluations,
		enrollments: enrollments,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns evaluations for the tenant with pagination metadata.
func (s *EvaluationService) List(ctx context.Context, schoolID string, filter models.EvaluationFilter) ([]models.EvaluationDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	evaluations, total, err := s.evaluations.List(ctx, schoolID, filter)
	if err != nil {
		return nil, nil, err
	}
	if evaluations == nil {
		evaluations = []models.EvaluationDetail{}
	}
	return evaluations, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Get returns a single evaluation.
func (s *EvaluationService) Get(ctx context.Context, schoolID, id string) (*models.EvaluationDetail, error) {
	detail, err := s.evaluations.FindByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return detail, nil
}

// Create persists a new draft evaluation and returns it with display
// relations resolved.
func (s *EvaluationService) Create(ctx context.Context, schoolID string, req CreateEvaluationRequest) (*models.EvaluationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.EvaluationType != "" && !req.EvaluationType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported evaluation type %q", req.EvaluationType))
	}
	if req.OverallGrade != nil && !req.OverallGrade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported grade %q", *req.OverallGrade))
	}
	if err := validateSkills(req.Skills); err != nil {
		return nil, err
	}

	academicYear := req.AcademicYear
	if academicYear == 0 {
		academicYear = s.now().Year()
	}
	evaluationType := req.EvaluationType
	if evaluationType == "" {
		evaluationType = models.EvaluationTypeFormative
	}
	evaluationDate := s.now()
	if req.EvaluationDate != nil {
		evaluationDate = *req.EvaluationDate
	}

	attendance, err := deriveAttendance(req.AttendanceTotalDays, req.AttendancePresentDays)
	if err != nil {
		return nil, err
	}

	evaluation := models.Evaluation{
		SchoolID:           schoolID,
		StudentID:          req.StudentID,
		ClassID:            req.ClassID,
		Subject:            req.Subject,
		Term:               req.Term,
		AcademicYear:       academicYear,
		EvaluationType:     evaluationType,
		EvaluationDate:     evaluationDate,
		EvaluatedBy:        req.EvaluatedBy,
		Skills:             req.Skills,
		Behavior:           req.Behavior,
		OverallGrade:       req.OverallGrade,
		OverallRemarks:     req.OverallRemarks,
		Strengths:          pq.StringArray(req.Strengths),
		AreasOfImprovement: pq.StringArray(req.AreasOfImprovement),
		Attendance:         attendance,
	}

	if err := s.evaluations.Insert(ctx, &evaluation); err != nil {
		return nil, fmt.Errorf("create evaluation: %w", err)
	}
	s.invalidateReports(ctx, schoolID)
	s.logger.Info("evaluation created",
		zap.String("evaluation_id", evaluation.ID),
		zap.String("school_id", schoolID),
		zap.String("student_id", evaluation.StudentID))

	return s.Get(ctx, schoolID, evaluation.ID)
}

// Update applies a patch to a draft evaluation. Finalized records reject the
// patch with an immutability error.
func (s *EvaluationService) Update(ctx context.Context, schoolID, id string, req UpdateEvaluationRequest) (*models.EvaluationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.EvaluationType != nil && !req.EvaluationType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported evaluation type %q", *req.EvaluationType))
	}
	if req.OverallGrade != nil && !req.OverallGrade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported grade %q", *req.OverallGrade))
	}
	if req.Skills != nil {
		if err := validateSkills(*req.Skills); err != nil {
			return nil, err
		}
	}

	current, err := s.Get(ctx, schoolID, id)
	if err != nil {
		return nil, err
	}
	if current.IsFinalized {
		return nil, appErrors.ErrImmutable
	}

	params := repository.UpdateEvaluationParams{
		Subject:        req.Subject,
		Term:           req.Term,
		AcademicYear:   req.AcademicYear,
		EvaluationType: req.EvaluationType,
		EvaluationDate: req.EvaluationDate,
		EvaluatedBy:    req.EvaluatedBy,
		Skills:         req.Skills,
		Behavior:       req.Behavior,
		OverallGrade:   req.OverallGrade,
		OverallRemarks: req.OverallRemarks,
	}
	if req.Strengths != nil {
		strengths := pq.StringArray(*req.Strengths)
		params.Strengths = &strengths
	}
	if req.AreasOfImprovement != nil {
		areas := pq.StringArray(*req.AreasOfImprovement)
		params.AreasOfImprovement = &areas
	}

	if req.AttendanceTotalDays != nil || req.AttendancePresentDays != nil {
		total := current.Attendance.TotalDays
		if req.AttendanceTotalDays != nil {
			total = req.AttendanceTotalDays
		}
		present := current.Attendance.PresentDays
		if req.AttendancePresentDays != nil {
			present = req.AttendancePresentDays
		}
		attendance, err := deriveAttendance(total, present)
		if err != nil {
			return nil, err
		}
		params.AttendanceTotalDays = req.AttendanceTotalDays
		params.AttendancePresentDays = req.AttendancePresentDays
		params.AttendancePercentage = attendance.Percentage
	}

	affected, err := s.evaluations.Update(ctx, schoolID, id, params)
	if err != nil {
		return nil, fmt.Errorf("update evaluation: %w", err)
	}
	if affected == 0 {
		// Lost a race with a concurrent finalize or delete.
		refreshed, err := s.Get(ctx, schoolID, id)
		if err != nil {
			return nil, err
		}
		if refreshed.IsFinalized {
			return nil, appErrors.ErrImmutable
		}
	}
	s.invalidateReports(ctx, schoolID)

	return s.Get(ctx, schoolID, id)
}

// Finalize flips the one-way finalization flag. The transition happens as a
// single conditional write; zero affected rows are disambiguated with a
// follow-up read.
func (s *EvaluationService) Finalize(ctx context.Context, schoolID, id string) (*models.EvaluationDetail, error) {
	affected, err := s.evaluations.Finalize(ctx, schoolID, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("finalize evaluation: %w", err)
	}
	if affected == 0 {
		detail, err := s.Get(ctx, schoolID, id)
		if err != nil {
			return nil, err
		}
		if detail.IsFinalized {
			return nil, appErrors.ErrAlreadyFinalized
		}
		return nil, appErrors.Clone(appErrors.ErrInternal, "finalize affected no rows")
	}
	s.invalidateReports(ctx, schoolID)
	s.logger.Info("evaluation finalized", zap.String("evaluation_id", id), zap.String("school_id", schoolID))

	return s.Get(ctx, schoolID, id)
}

// Delete removes a draft evaluation. Finalized records cannot be deleted.
func (s *EvaluationService) Delete(ctx context.Context, schoolID, id string) error {
	affected, err := s.evaluations.Delete(ctx, schoolID, id)
	if err != nil {
		return fmt.Errorf("delete evaluation: %w", err)
	}
	if affected == 0 {
		detail, err := s.Get(ctx, schoolID, id)
		if err != nil {
			return err
		}
		if detail.IsFinalized {
			return appErrors.ErrImmutable
		}
		return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
	}
	s.invalidateReports(ctx, schoolID)
	s.logger.Info("evaluation deleted", zap.String("evaluation_id", id), zap.String("school_id", schoolID))
	return nil
}

// BulkCreateTemplates creates one blank draft per actively enrolled student
// in the class. The batch commits atomically.
func (s *EvaluationService) BulkCreateTemplates(ctx context.Context, schoolID string, req BulkTemplatesRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.EvaluationType != "" && !req.EvaluationType.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported evaluation type %q", req.EvaluationType))
	}

	academicYear := req.AcademicYear
	if academicYear == 0 {
		academicYear = s.now().Year()
	}
	evaluationType := req.EvaluationType
	if evaluationType == "" {
		evaluationType = models.EvaluationTypeFormative
	}

	studentIDs, err := s.enrollments.ListActiveStudentIDs(ctx, schoolID, req.ClassID)
	if err != nil {
		return 0, fmt.Errorf("resolve enrolled students: %w", err)
	}
	if len(studentIDs) == 0 {
		return 0, nil
	}

	now := s.now()
	evaluations := make([]models.Evaluation, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		evaluations = append(evaluations, models.Evaluation{
			SchoolID:       schoolID,
			StudentID:      studentID,
			ClassID:        req.ClassID,
			Subject:        req.Subject,
			Term:           req.Term,
			AcademicYear:   academicYear,
			EvaluationType: evaluationType,
			EvaluationDate: now,
			Skills:         models.SkillList{},
		})
	}

	if err := s.evaluations.InsertBatch(ctx, evaluations); err != nil {
		return 0, fmt.Errorf("bulk create templates: %w", err)
	}
	s.invalidateReports(ctx, schoolID)
	s.logger.Info("evaluation templates created",
		zap.String("school_id", schoolID),
		zap.String("class_id", req.ClassID),
		zap.Int("count", len(evaluations)))
	return len(evaluations), nil
}

// Stats summarises evaluation volume for the tenant.
func (s *EvaluationService) Stats(ctx context.Context, schoolID string, academicYear int, term string) (*models.EvaluationStats, error) {
	total, finalized, err := s.evaluations.CountsByState(ctx, schoolID, academicYear, term)
	if err != nil {
		return nil, err
	}
	stats := &models.EvaluationStats{
		Total:     total,
		Finalized: finalized,
		Draft:     total - finalized,
		ByTerm:    map[string]int{},
		BySubject: map[string]int{},
		ByClass:   map[string]int{},
	}
	groups := []struct {
		key  string
		dest map[string]int
	}{
		{"term", stats.ByTerm},
		{"subject", stats.BySubject},
		{"class", stats.ByClass},
	}
	for _, group := range groups {
		counts, err := s.evaluations.GroupCounts(ctx, schoolID, group.key, academicYear, term)
		if err != nil {
			return nil, err
		}
		for _, row := range counts {
			group.dest[row.Key] = row.Count
		}
	}
	return stats, nil
}

func (s *EvaluationService) invalidateReports(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("reports:%s:*", schoolID)); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.String("school_id", schoolID), zap.Error(err))
	}
}

func validateSkills(skills models.SkillList) error {
	for _, skill := range skills {
		if !skill.Rating.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported skill rating %q", skill.Rating))
		}
	}
	return nil
}

func deriveAttendance(total, present *int) (models.AttendanceSummary, error) {
	summary := models.AttendanceSummary{TotalDays: total, PresentDays: present}
	if total == nil || present == nil {
		return summary, nil
	}
	if *total == 0 {
		if *present > 0 {
			return summary, appErrors.Clone(appErrors.ErrValidation, "present days recorded with zero total days")
		}
		return summary, nil
	}
	percentage, err := AttendancePercentage(*present, *total)
	if err != nil {
		return summary, err
	}
	summary.Percentage = &percentage
	return summary, nil
}
