package models

import "time"

// AttendanceStatus represents one day's attendance outcome.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
	AttendanceLate    AttendanceStatus = "Late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// AttendanceEntry is a single day's attendance row. The reporting engine
// only reads these; writes belong to the attendance module.
type AttendanceEntry struct {
	ID        string           `db:"id" json:"id"`
	SchoolID  string           `db:"school_id" json:"school_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
}

// AttendanceEntryDetail joins the student name for drill-down views.
type AttendanceEntryDetail struct {
	AttendanceEntry
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
}

// AttendanceFilter scopes attendance report queries. A single date takes
// precedence over a month+year range.
type AttendanceFilter struct {
	ClassID string
	Date    *time.Time
	Month   int
	Year    int
}

// AttendanceStats is the scalar portion of an attendance report.
type AttendanceStats struct {
	TotalRecords         int     `json:"total_records"`
	TotalPresent         int     `json:"total_present"`
	TotalAbsent          int     `json:"total_absent"`
	TotalLate            int     `json:"total_late"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// AttendanceReport pairs computed stats with the raw matching records.
type AttendanceReport struct {
	Stats   AttendanceStats         `json:"stats"`
	Records []AttendanceEntryDetail `json:"records"`
}
