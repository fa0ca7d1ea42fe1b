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
	"github.com/edupulse/edupulse-api/internal/repository"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

type fakeEvaluationRepo struct {
	records map[string]*models.EvaluationDetail

	inserted     []models.Evaluation
	batch        []models.Evaluation
	lastUpdate   repository.UpdateEvaluationParams
	updateRows   int64
	finalizeRows int64
	deleteRows   int64

	listResult  []models.EvaluationDetail
	listTotal   int
	counts      [2]int
	groupCounts map[string][]models.GroupCount
}

func (f *fakeEvaluationRepo) List(context.Context, string, models.EvaluationFilter) ([]models.EvaluationDetail, int, error) {
	return f.listResult, f.listTotal, nil
}

func (f *fakeEvaluationRepo) FindByID(_ context.Context, _ string, id string) (*models.EvaluationDetail, error) {
	if detail, ok := f.records[id]; ok {
		return detail, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEvaluationRepo) Insert(_ context.Context, evaluation *models.Evaluation) error {
	evaluation.ID = "eval-new"
	f.inserted = append(f.inserted, *evaluation)
	if f.records == nil {
		f.records = make(map[string]*models.EvaluationDetail)
	}
	f.records[evaluation.ID] = &models.EvaluationDetail{Evaluation: *evaluation}
	return nil
}

func (f *fakeEvaluationRepo) InsertBatch(_ context.Context, evaluations []models.Evaluation) error {
	f.batch = evaluations
	return nil
}

func (f *fakeEvaluationRepo) Update(_ context.Context, _, _ string, params repository.UpdateEvaluationParams) (int64, error) {
	f.lastUpdate = params
	return f.updateRows, nil
}

func (f *fakeEvaluationRepo) Finalize(context.Context, string, string, time.Time) (int64, error) {
	return f.finalizeRows, nil
}

func (f *fakeEvaluationRepo) Delete(context.Context, string, string) (int64, error) {
	return f.deleteRows, nil
}

func (f *fakeEvaluationRepo) CountsByState(context.Context, string, int, string) (int, int, error) {
	return f.counts[0], f.counts[1], nil
}

func (f *fakeEvaluationRepo) GroupCounts(_ context.Context, _ string, groupBy string, _ int, _ string) ([]models.GroupCount, error) {
	return f.groupCounts[groupBy], nil
}

type fakeEnrollments struct {
	studentIDs []string
}

func (f *fakeEnrollments) ListActiveStudentIDs(context.Context, string, string) ([]string, error) {
	return f.studentIDs, nil
}

type fakeInvalidator struct {
	patterns []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

func newEvaluationService(repo *fakeEvaluationRepo, enrollments *fakeEnrollments, cache *fakeInvalidator) *EvaluationService {
	var invalidator reportCacheInvalidator
	if cache != nil {
		invalidator = cache
	}
	svc := NewEvaluationService(repo, enrollments, invalidator, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func intPtr(v int) *int { return &v }

func TestEvaluationServiceCreateDerivesAttendance(t *testing.T) {
	repo := &fakeEvaluationRepo{}
	cache := &fakeInvalidator{}
	svc := newEvaluationService(repo, &fakeEnrollments{}, cache)

	created, err := svc.Create(context.Background(), "school-1", CreateEvaluationRequest{
		StudentID:             "student-1",
		ClassID:               "class-1",
		Subject:               "Math",
		Term:                  "term-1",
		AttendanceTotalDays:   intPtr(20),
		AttendancePresentDays: intPtr(18),
	})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, 2026, created.AcademicYear)
	assert.Equal(t, models.EvaluationTypeFormative, created.EvaluationType)
	require.NotNil(t, created.Attendance.Percentage)
	assert.Equal(t, 90.0, *created.Attendance.Percentage)
	assert.Equal(t, []string{"reports:school-1:*"}, cache.patterns)
}

func TestEvaluationServiceCreateRejectsUndefinedRatio(t *testing.T) {
	svc := newEvaluationService(&fakeEvaluationRepo{}, &fakeEnrollments{}, nil)

	_, err := svc.Create(context.Background(), "school-1", CreateEvaluationRequest{
		StudentID:             "student-1",
		ClassID:               "class-1",
		Subject:               "Math",
		Term:                  "term-1",
		AttendanceTotalDays:   intPtr(0),
		AttendancePresentDays: intPtr(5),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEvaluationServiceCreateRequiresCoreFields(t *testing.T) {
	svc := newEvaluationService(&fakeEvaluationRepo{}, &fakeEnrollments{}, nil)

	_, err := svc.Create(context.Background(), "school-1", CreateEvaluationRequest{StudentID: "student-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEvaluationServiceCreateAllowsZeroOverZero(t *testing.T) {
	repo := &fakeEvaluationRepo{}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	created, err := svc.Create(context.Background(), "school-1", CreateEvaluationRequest{
		StudentID:             "student-1",
		ClassID:               "class-1",
		Subject:               "Math",
		Term:                  "term-1",
		AttendanceTotalDays:   intPtr(0),
		AttendancePresentDays: intPtr(0),
	})
	require.NoError(t, err)
	assert.Nil(t, created.Attendance.Percentage)
}

func TestEvaluationServiceUpdateRejectsFinalized(t *testing.T) {
	repo := &fakeEvaluationRepo{
		records: map[string]*models.EvaluationDetail{
			"eval-1": {Evaluation: models.Evaluation{ID: "eval-1", IsFinalized: true}},
		},
	}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	subject := "Physics"
	_, err := svc.Update(context.Background(), "school-1", "eval-1", UpdateEvaluationRequest{Subject: &subject})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrImmutable.Code, appErrors.FromError(err).Code)
}

func TestEvaluationServiceUpdateMissing(t *testing.T) {
	svc := newEvaluationService(&fakeEvaluationRepo{}, &fakeEnrollments{}, nil)

	subject := "Physics"
	_, err := svc.Update(context.Background(), "school-1", "ghost", UpdateEvaluationRequest{Subject: &subject})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEvaluationServiceUpdateRecomputesPercentageFromMergedDays(t *testing.T) {
	total := 20
	repo := &fakeEvaluationRepo{
		updateRows: 1,
		records: map[string]*models.EvaluationDetail{
			"eval-1": {Evaluation: models.Evaluation{
				ID:         "eval-1",
				Attendance: models.AttendanceSummary{TotalDays: &total},
			}},
		},
	}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	_, err := svc.Update(context.Background(), "school-1", "eval-1", UpdateEvaluationRequest{
		AttendancePresentDays: intPtr(15),
	})
	require.NoError(t, err)
	require.NotNil(t, repo.lastUpdate.AttendancePercentage)
	assert.Equal(t, 75.0, *repo.lastUpdate.AttendancePercentage)
	assert.Nil(t, repo.lastUpdate.AttendanceTotalDays)
	require.NotNil(t, repo.lastUpdate.AttendancePresentDays)
	assert.Equal(t, 15, *repo.lastUpdate.AttendancePresentDays)
}

func TestEvaluationServiceFinalizeOnce(t *testing.T) {
	repo := &fakeEvaluationRepo{
		finalizeRows: 1,
		records: map[string]*models.EvaluationDetail{
			"eval-1": {Evaluation: models.Evaluation{ID: "eval-1", IsFinalized: true}},
		},
	}
	cache := &fakeInvalidator{}
	svc := newEvaluationService(repo, &fakeEnrollments{}, cache)

	detail, err := svc.Finalize(context.Background(), "school-1", "eval-1")
	require.NoError(t, err)
	assert.True(t, detail.IsFinalized)
	assert.NotEmpty(t, cache.patterns)
}

func TestEvaluationServiceFinalizeTwiceFails(t *testing.T) {
	repo := &fakeEvaluationRepo{
		finalizeRows: 0,
		records: map[string]*models.EvaluationDetail{
			"eval-1": {Evaluation: models.Evaluation{ID: "eval-1", IsFinalized: true}},
		},
	}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	_, err := svc.Finalize(context.Background(), "school-1", "eval-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyFinalized.Code, appErrors.FromError(err).Code)
}

func TestEvaluationServiceFinalizeMissing(t *testing.T) {
	svc := newEvaluationService(&fakeEvaluationRepo{}, &fakeEnrollments{}, nil)

	_, err := svc.Finalize(context.Background(), "school-1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEvaluationServiceDeleteFinalizedFails(t *testing.T) {
	repo := &fakeEvaluationRepo{
		deleteRows: 0,
		records: map[string]*models.EvaluationDetail{
			"eval-1": {Evaluation: models.Evaluation{ID: "eval-1", IsFinalized: true}},
		},
	}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	err := svc.Delete(context.Background(), "school-1", "eval-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrImmutable.Code, appErrors.FromError(err).Code)
}

func TestEvaluationServiceDeleteDraft(t *testing.T) {
	repo := &fakeEvaluationRepo{deleteRows: 1}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	require.NoError(t, svc.Delete(context.Background(), "school-1", "eval-1"))
}

func TestEvaluationServiceBulkCreatesOneDraftPerStudent(t *testing.T) {
	repo := &fakeEvaluationRepo{}
	enrollments := &fakeEnrollments{studentIDs: []string{"s1", "s2", "s3", "s4", "s5"}}
	svc := newEvaluationService(repo, enrollments, nil)

	count, err := svc.BulkCreateTemplates(context.Background(), "school-1", BulkTemplatesRequest{
		ClassID: "class-1",
		Subject: "Math",
		Term:    "term-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.Len(t, repo.batch, 5)
	for _, evaluation := range repo.batch {
		assert.Equal(t, "school-1", evaluation.SchoolID)
		assert.Equal(t, 2026, evaluation.AcademicYear)
		assert.False(t, evaluation.IsFinalized)
		assert.Empty(t, evaluation.Skills)
	}
}

func TestEvaluationServiceBulkEmptyClass(t *testing.T) {
	repo := &fakeEvaluationRepo{}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	count, err := svc.BulkCreateTemplates(context.Background(), "school-1", BulkTemplatesRequest{
		ClassID: "class-1",
		Subject: "Math",
		Term:    "term-1",
	})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Nil(t, repo.batch)
}

func TestEvaluationServiceStats(t *testing.T) {
	repo := &fakeEvaluationRepo{
		counts: [2]int{10, 7},
		groupCounts: map[string][]models.GroupCount{
			"term":    {{Key: "term-1", Count: 6}, {Key: "term-2", Count: 4}},
			"subject": {{Key: "Math", Count: 10}},
			"class":   {{Key: "class-1", Count: 10}},
		},
	}
	svc := newEvaluationService(repo, &fakeEnrollments{}, nil)

	stats, err := svc.Stats(context.Background(), "school-1", 2026, "")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 7, stats.Finalized)
	assert.Equal(t, 3, stats.Draft)
	assert.Equal(t, 6, stats.ByTerm["term-1"])
	assert.Equal(t, 10, stats.BySubject["Math"])
	assert.Equal(t, 10, stats.ByClass["class-1"])
}
