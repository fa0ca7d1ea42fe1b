package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type fakeFinalizedReader struct {
	byClass   []models.EvaluationDetail
	byStudent []models.EvaluationDetail
}

func (f *fakeFinalizedReader) ListFinalizedByClass(context.Context, string, string, models.EvaluationFilter) ([]models.EvaluationDetail, error) {
	return f.byClass, nil
}

func (f *fakeFinalizedReader) ListFinalizedByStudent(context.Context, string, string, int, string) ([]models.EvaluationDetail, error) {
	return f.byStudent, nil
}

type fakeStudentReader struct {
	student *models.ReportCardStudent
}

func (f *fakeStudentReader) FindStudent(context.Context, string, string) (*models.ReportCardStudent, error) {
	if f.student == nil {
		return nil, sql.ErrNoRows
	}
	return f.student, nil
}

func gradedEvaluation(subject string, grade *models.GradeLetter) models.EvaluationDetail {
	return models.EvaluationDetail{Evaluation: models.Evaluation{
		Subject:      subject,
		OverallGrade: grade,
		IsFinalized:  true,
	}}
}

func TestClassPerformanceDistributionCoversAllBuckets(t *testing.T) {
	gradeA := models.GradeA
	gradeB := models.GradeB
	reader := &fakeFinalizedReader{byClass: []models.EvaluationDetail{
		gradedEvaluation("Math", &gradeA),
		gradedEvaluation("Math", &gradeA),
		gradedEvaluation("Math", &gradeB),
		gradedEvaluation("Math", nil),
	}}
	svc := NewPerformanceService(reader, &fakeStudentReader{}, nil, nil, time.Minute, zap.NewNop())

	performance, err := svc.ClassPerformance(context.Background(), "school-1", "class-1", models.EvaluationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, performance.TotalStudents)
	assert.Len(t, performance.GradeDistribution, len(models.GradeLetters))
	assert.Equal(t, 2, performance.GradeDistribution[models.GradeA])
	assert.Equal(t, 1, performance.GradeDistribution[models.GradeB])
	assert.Zero(t, performance.GradeDistribution[models.GradeE])

	// The ungraded evaluation counts toward the total but no bucket.
	bucketSum := 0
	for _, count := range performance.GradeDistribution {
		bucketSum += count
	}
	assert.Equal(t, 3, bucketSum)
}

func TestClassPerformanceEmptyClass(t *testing.T) {
	svc := NewPerformanceService(&fakeFinalizedReader{}, &fakeStudentReader{}, nil, nil, time.Minute, zap.NewNop())

	performance, err := svc.ClassPerformance(context.Background(), "school-1", "class-1", models.EvaluationFilter{})
	require.NoError(t, err)
	assert.Zero(t, performance.TotalStudents)
	assert.Len(t, performance.GradeDistribution, len(models.GradeLetters))
}

func TestReportCardAggregatesSubjects(t *testing.T) {
	gradeA := models.GradeA
	reader := &fakeFinalizedReader{byStudent: []models.EvaluationDetail{
		gradedEvaluation("Math", &gradeA),
		gradedEvaluation("Math", &gradeA),
		gradedEvaluation("Science", &gradeA),
	}}
	students := &fakeStudentReader{student: &models.ReportCardStudent{ID: "student-1", FullName: "Alice"}}
	svc := NewPerformanceService(reader, students, nil, nil, time.Minute, zap.NewNop())

	card, err := svc.ReportCard(context.Background(), "school-1", "student-1", 2026, "term-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", card.Student.FullName)
	assert.Equal(t, 2, card.TotalSubjects)
	assert.Len(t, card.Evaluations, 3)
	assert.Equal(t, 2026, card.AcademicYear)
}

func TestReportCardUnknownStudent(t *testing.T) {
	svc := NewPerformanceService(&fakeFinalizedReader{}, &fakeStudentReader{}, nil, nil, time.Minute, zap.NewNop())

	_, err := svc.ReportCard(context.Background(), "school-1", "ghost", 2026, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportCardRequiresFinalizedEvaluations(t *testing.T) {
	students := &fakeStudentReader{student: &models.ReportCardStudent{ID: "student-1", FullName: "Alice"}}
	svc := NewPerformanceService(&fakeFinalizedReader{}, students, nil, nil, time.Minute, zap.NewNop())

	_, err := svc.ReportCard(context.Background(), "school-1", "student-1", 2026, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
