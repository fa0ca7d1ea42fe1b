package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edupulse/edupulse-api/internal/models"
)

const evaluationColumns = `e.id, e.school_id, e.student_id, e.class_id, e.subject, e.term, e.academic_year,
        e.evaluation_type, e.evaluation_date, e.evaluated_by, e.skills, e.behavior, e.overall_grade,
        e.overall_remarks, e.strengths, e.areas_of_improvement,
        e.attendance_total_days AS "attendance.total_days",
        e.attendance_present_days AS "attendance.present_days",
        e.attendance_percentage AS "attendance.percentage",
        e.is_finalized, e.finalized_at, e.created_at, e.updated_at`

// EvaluationRepository handles evaluation persistence. Every query carries
// the tenant predicate; school_id is never optional.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// List returns evaluations matching the filter with pagination metadata.
func (r *EvaluationRepository) List(ctx context.Context, schoolID string, filter models.EvaluationFilter) ([]models.EvaluationDetail, int, error) {
	base := `FROM evaluations e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN classes c ON c.id = e.class_id`

	conditions := []string{"e.school_id = $1"}
	args := []interface{}{schoolID}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("e.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Term != "" {
		conditions = append(conditions, fmt.Sprintf("e.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.AcademicYear != 0 {
		conditions = append(conditions, fmt.Sprintf("e.academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Finalized != nil {
		conditions = append(conditions, fmt.Sprintf("e.is_finalized = $%d", len(args)+1))
		args = append(args, *filter.Finalized)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, c.name AS class_name
        %s ORDER BY e.evaluation_date DESC, e.created_at DESC LIMIT %d OFFSET %d`,
		evaluationColumns, base+clause, limit, offset)

	var evaluations []models.EvaluationDetail
	if err := r.db.SelectContext(ctx, &evaluations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list evaluations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count evaluations: %w", err)
	}
	return evaluations, total, nil
}

// FindByID returns one evaluation scoped to the tenant. Callers translate
// sql.ErrNoRows into a domain not-found error.
func (r *EvaluationRepository) FindByID(ctx context.Context, schoolID, id string) (*models.EvaluationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, c.name AS class_name
        FROM evaluations e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE e.id = $1 AND e.school_id = $2`, evaluationColumns)
	var detail models.EvaluationDetail
	if err := r.db.GetContext(ctx, &detail, query, id, schoolID); err != nil {
		return nil, err
	}
	return &detail, nil
}

const insertEvaluationQuery = `INSERT INTO evaluations (id, school_id, student_id, class_id, subject, term, academic_year,
        evaluation_type, evaluation_date, evaluated_by, skills, behavior, overall_grade, overall_remarks,
        strengths, areas_of_improvement, attendance_total_days, attendance_present_days, attendance_percentage,
        is_finalized, finalized_at, created_at, updated_at)
VALUES (:id, :school_id, :student_id, :class_id, :subject, :term, :academic_year,
        :evaluation_type, :evaluation_date, :evaluated_by, :skills, :behavior, :overall_grade, :overall_remarks,
        :strengths, :areas_of_improvement, :attendance.total_days, :attendance.present_days, :attendance.percentage,
        :is_finalized, :finalized_at, :created_at, :updated_at)`

// Insert persists a new evaluation record with generated defaults.
func (r *EvaluationRepository) Insert(ctx context.Context, evaluation *models.Evaluation) error {
	prepareEvaluation(evaluation)
	if _, err := r.db.NamedExecContext(ctx, insertEvaluationQuery, evaluation); err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// InsertBatch persists a batch of evaluations in one transaction. Any single
// failure rolls the whole batch back; there is no partial commit.
func (r *EvaluationRepository) InsertBatch(ctx context.Context, evaluations []models.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin evaluation batch: %w", err)
	}
	for i := range evaluations {
		prepareEvaluation(&evaluations[i])
		if _, err := tx.NamedExecContext(ctx, insertEvaluationQuery, &evaluations[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("batch insert evaluation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evaluation batch: %w", err)
	}
	return nil
}

func prepareEvaluation(evaluation *models.Evaluation) {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = now
	}
	evaluation.UpdatedAt = now
	if evaluation.Skills == nil {
		evaluation.Skills = models.SkillList{}
	}
	if evaluation.Strengths == nil {
		evaluation.Strengths = pq.StringArray{}
	}
	if evaluation.AreasOfImprovement == nil {
		evaluation.AreasOfImprovement = pq.StringArray{}
	}
}

// UpdateEvaluationParams defines the mutable draft fields. Nil fields are
// left untouched.
type UpdateEvaluationParams struct {
	Subject               *string
	Term                  *string
	AcademicYear          *int
	EvaluationType        *models.EvaluationType
	EvaluationDate        *time.Time
	EvaluatedBy           *string
	Skills                *models.SkillList
	Behavior              *models.BehaviorRatings
	OverallGrade          *models.GradeLetter
	OverallRemarks        *string
	Strengths             *pq.StringArray
	AreasOfImprovement    *pq.StringArray
	AttendanceTotalDays   *int
	AttendancePresentDays *int
	AttendancePercentage  *float64
}

// Update applies the patch to a draft evaluation. The is_finalized predicate
// makes the write conditional: finalized rows are never touched, so the
// returned affected count is zero for both missing and finalized records.
func (r *EvaluationRepository) Update(ctx context.Context, schoolID, id string, params UpdateEvaluationParams) (int64, error) {
	set := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if params.Subject != nil {
		add("subject", *params.Subject)
	}
	if params.Term != nil {
		add("term", *params.Term)
	}
	if params.AcademicYear != nil {
		add("academic_year", *params.AcademicYear)
	}
	if params.EvaluationType != nil {
		add("evaluation_type", *params.EvaluationType)
	}
	if params.EvaluationDate != nil {
		add("evaluation_date", *params.EvaluationDate)
	}
	if params.EvaluatedBy != nil {
		add("evaluated_by", *params.EvaluatedBy)
	}
	if params.Skills != nil {
		add("skills", *params.Skills)
	}
	if params.Behavior != nil {
		add("behavior", *params.Behavior)
	}
	if params.OverallGrade != nil {
		add("overall_grade", *params.OverallGrade)
	}
	if params.OverallRemarks != nil {
		add("overall_remarks", *params.OverallRemarks)
	}
	if params.Strengths != nil {
		add("strengths", *params.Strengths)
	}
	if params.AreasOfImprovement != nil {
		add("areas_of_improvement", *params.AreasOfImprovement)
	}
	if params.AttendanceTotalDays != nil {
		add("attendance_total_days", *params.AttendanceTotalDays)
	}
	if params.AttendancePresentDays != nil {
		add("attendance_present_days", *params.AttendancePresentDays)
	}
	if params.AttendancePercentage != nil {
		add("attendance_percentage", *params.AttendancePercentage)
	}

	if len(set) == 0 {
		return 0, nil
	}
	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE evaluations SET %s WHERE id = $%d AND school_id = $%d AND is_finalized = FALSE`,
		strings.Join(set, ", "), len(args)+1, len(args)+2)
	args = append(args, id, schoolID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update evaluation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update evaluation rows: %w", err)
	}
	return affected, nil
}

// Finalize flips the one-way finalization flag as a single conditional
// write. Zero rows affected means the record was missing or already
// finalized; the caller disambiguates with a follow-up read. Two concurrent
// calls can never both observe is_finalized = FALSE here.
func (r *EvaluationRepository) Finalize(ctx context.Context, schoolID, id string, at time.Time) (int64, error) {
	const query = `UPDATE evaluations SET is_finalized = TRUE, finalized_at = $3, updated_at = $3
        WHERE id = $1 AND school_id = $2 AND is_finalized = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, schoolID, at)
	if err != nil {
		return 0, fmt.Errorf("finalize evaluation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("finalize evaluation rows: %w", err)
	}
	return affected, nil
}

// Delete removes a draft evaluation. Finalized rows are excluded by the
// predicate and therefore never deleted.
func (r *EvaluationRepository) Delete(ctx context.Context, schoolID, id string) (int64, error) {
	const query = `DELETE FROM evaluations WHERE id = $1 AND school_id = $2 AND is_finalized = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, schoolID)
	if err != nil {
		return 0, fmt.Errorf("delete evaluation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete evaluation rows: %w", err)
	}
	return affected, nil
}

// ListFinalizedByStudent returns finalized evaluations for a report card.
func (r *EvaluationRepository) ListFinalizedByStudent(ctx context.Context, schoolID, studentID string, academicYear int, term string) ([]models.EvaluationDetail, error) {
	conditions := []string{"e.school_id = $1", "e.student_id = $2", "e.is_finalized = TRUE"}
	args := []interface{}{schoolID, studentID}
	if academicYear != 0 {
		conditions = append(conditions, fmt.Sprintf("e.academic_year = $%d", len(args)+1))
		args = append(args, academicYear)
	}
	if term != "" {
		conditions = append(conditions, fmt.Sprintf("e.term = $%d", len(args)+1))
		args = append(args, term)
	}
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, c.name AS class_name
        FROM evaluations e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE %s ORDER BY e.subject ASC`, evaluationColumns, strings.Join(conditions, " AND "))
	var evaluations []models.EvaluationDetail
	if err := r.db.SelectContext(ctx, &evaluations, query, args...); err != nil {
		return nil, fmt.Errorf("list report card evaluations: %w", err)
	}
	return evaluations, nil
}

// ListFinalizedByClass returns finalized evaluations for performance
// aggregation. Drafts never contribute to performance reporting.
func (r *EvaluationRepository) ListFinalizedByClass(ctx context.Context, schoolID, classID string, filter models.EvaluationFilter) ([]models.EvaluationDetail, error) {
	conditions := []string{"e.school_id = $1", "e.class_id = $2", "e.is_finalized = TRUE"}
	args := []interface{}{schoolID, classID}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("e.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Term != "" {
		conditions = append(conditions, fmt.Sprintf("e.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.AcademicYear != 0 {
		conditions = append(conditions, fmt.Sprintf("e.academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, c.name AS class_name
        FROM evaluations e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE %s ORDER BY s.full_name ASC`, evaluationColumns, strings.Join(conditions, " AND "))
	var evaluations []models.EvaluationDetail
	if err := r.db.SelectContext(ctx, &evaluations, query, args...); err != nil {
		return nil, fmt.Errorf("list class evaluations: %w", err)
	}
	return evaluations, nil
}

// CountsByState returns total and finalized counts for the stats endpoint.
func (r *EvaluationRepository) CountsByState(ctx context.Context, schoolID string, academicYear int, term string) (total, finalized int, err error) {
	conditions := []string{"school_id = $1"}
	args := []interface{}{schoolID}
	if academicYear != 0 {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, academicYear)
	}
	if term != "" {
		conditions = append(conditions, fmt.Sprintf("term = $%d", len(args)+1))
		args = append(args, term)
	}
	query := fmt.Sprintf(`SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_finalized) AS finalized
        FROM evaluations WHERE %s`, strings.Join(conditions, " AND "))
	row := struct {
		Total     int `db:"total"`
		Finalized int `db:"finalized"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, 0, fmt.Errorf("count evaluations by state: %w", err)
	}
	return row.Total, row.Finalized, nil
}

var statsGroupColumns = map[string]string{
	"term":    "term",
	"subject": "subject",
	"class":   "class_id",
}

// GroupCounts returns per-group evaluation counts for a whitelisted column.
func (r *EvaluationRepository) GroupCounts(ctx context.Context, schoolID, groupBy string, academicYear int, term string) ([]models.GroupCount, error) {
	column, ok := statsGroupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported group column %q", groupBy)
	}
	conditions := []string{"school_id = $1"}
	args := []interface{}{schoolID}
	if academicYear != 0 {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, academicYear)
	}
	if term != "" && groupBy != "term" {
		conditions = append(conditions, fmt.Sprintf("term = $%d", len(args)+1))
		args = append(args, term)
	}
	query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM evaluations
        WHERE %s GROUP BY %s ORDER BY count DESC`, column, strings.Join(conditions, " AND "), column)
	var counts []models.GroupCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("group evaluations by %s: %w", groupBy, err)
	}
	return counts, nil
}
