package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edupulse/edupulse-api/internal/models"
)

// AttendanceRepository reads attendance entries for reporting. Writes belong
// to the attendance module; this engine never mutates entries.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance entries for the tenant and filter. A single date
// takes precedence over a month+year range; with neither, all entries match.
func (r *AttendanceRepository) List(ctx context.Context, schoolID string, filter models.AttendanceFilter) ([]models.AttendanceEntryDetail, error) {
	conditions := []string{"a.school_id = $1"}
	args := []interface{}{schoolID}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("a.date = $%d", len(args)+1))
		args = append(args, filter.Date.Format("2006-01-02"))
	} else if filter.Month >= 1 && filter.Month <= 12 && filter.Year > 0 {
		start := time.Date(filter.Year, time.Month(filter.Month), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, start.Format("2006-01-02"))
		conditions = append(conditions, fmt.Sprintf("a.date < $%d", len(args)+1))
		args = append(args, end.Format("2006-01-02"))
	}

	query := fmt.Sprintf(`SELECT a.id, a.school_id, a.student_id, a.class_id, a.date, a.status,
        s.full_name AS student_name
        FROM attendance_entries a
        LEFT JOIN students s ON s.id = a.student_id
        WHERE %s ORDER BY a.date DESC, s.full_name ASC`, strings.Join(conditions, " AND "))

	var entries []models.AttendanceEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance entries: %w", err)
	}
	return entries, nil
}
