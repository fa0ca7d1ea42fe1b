package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edupulse/edupulse-api/internal/models"
)

// EnrollmentRepository reads roster data: enrollments, students, classes and
// teaching staff. The reporting engine treats all of these as read-only.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListActiveStudentIDs returns the students currently enrolled in a class.
func (r *EnrollmentRepository) ListActiveStudentIDs(ctx context.Context, schoolID, classID string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments
        WHERE school_id = $1 AND class_id = $2 AND status = $3 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, schoolID, classID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return ids, nil
}

// FindStudent returns the report-card header fields for a student.
func (r *EnrollmentRepository) FindStudent(ctx context.Context, schoolID, studentID string) (*models.ReportCardStudent, error) {
	const query = `SELECT id, full_name, gender FROM students WHERE id = $1 AND school_id = $2`
	var student models.ReportCardStudent
	if err := r.db.GetContext(ctx, &student, query, studentID, schoolID); err != nil {
		return nil, err
	}
	return &student, nil
}

// CountActiveStudents counts actively enrolled students for the tenant.
func (r *EnrollmentRepository) CountActiveStudents(ctx context.Context, schoolID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_id) FROM enrollments WHERE school_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// CountTeachers counts staff members holding the teacher role.
func (r *EnrollmentRepository) CountTeachers(ctx context.Context, schoolID string) (int, error) {
	const query = `SELECT COUNT(*) FROM staff WHERE school_id = $1 AND role = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, models.RoleTeacher); err != nil {
		return 0, fmt.Errorf("count teachers: %w", err)
	}
	return count, nil
}

// CountClasses counts classes for the tenant.
func (r *EnrollmentRepository) CountClasses(ctx context.Context, schoolID string) (int, error) {
	const query = `SELECT COUNT(*) FROM classes WHERE school_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

// ClassStrength returns per-class roster totals with gender breakdown.
// Occupancy is computed by the caller from total and capacity.
func (r *EnrollmentRepository) ClassStrength(ctx context.Context, schoolID string) ([]models.ClassStrengthRow, error) {
	const query = `SELECT c.name AS class_name, c.section, c.capacity,
        COUNT(e.id) AS total,
        COUNT(e.id) FILTER (WHERE s.gender = 'male') AS boys,
        COUNT(e.id) FILTER (WHERE s.gender = 'female') AS girls
        FROM classes c
        LEFT JOIN enrollments e ON e.class_id = c.id AND e.status = $2
        LEFT JOIN students s ON s.id = e.student_id
        WHERE c.school_id = $1
        GROUP BY c.id, c.name, c.section, c.capacity
        ORDER BY c.name ASC`
	var rows []models.ClassStrengthRow
	if err := r.db.SelectContext(ctx, &rows, query, schoolID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("class strength: %w", err)
	}
	return rows, nil
}
