package models

// EnrollmentStatus tracks whether a student is actively enrolled.
type EnrollmentStatus string

const (
	EnrollmentStatusActive   EnrollmentStatus = "active"
	EnrollmentStatusInactive EnrollmentStatus = "inactive"
)

// Enrollment links a student to a class within a tenant.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	SchoolID  string           `db:"school_id" json:"school_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
}

// ClassStrengthRow summarises one class roster for the strength report.
type ClassStrengthRow struct {
	ClassName string  `db:"class_name" json:"class_name"`
	Section   *string `db:"section" json:"section,omitempty"`
	Total     int     `db:"total" json:"total"`
	Boys      int     `db:"boys" json:"boys"`
	Girls     int     `db:"girls" json:"girls"`
	Capacity  int     `db:"capacity" json:"capacity"`
	Occupancy float64 `json:"occupancy"`
}

// DashboardSummary is the top-level tenant snapshot. Every field comes from
// an independent query; none caches across calls beyond the report TTL.
type DashboardSummary struct {
	Students  int     `json:"students"`
	Teachers  int     `json:"teachers"`
	Classes   int     `json:"classes"`
	Income    float64 `json:"income"`
	Expenses  float64 `json:"expenses"`
	NetProfit float64 `json:"net_profit"`
}
