package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// EvaluationType classifies how an assessment was conducted.
type EvaluationType string

const (
	EvaluationTypeFormative  EvaluationType = "formative"
	EvaluationTypeSummative  EvaluationType = "summative"
	EvaluationTypeContinuous EvaluationType = "continuous"
	EvaluationTypeProject    EvaluationType = "project"
)

// Valid returns true when the type is a supported value.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationTypeFormative, EvaluationTypeSummative, EvaluationTypeContinuous, EvaluationTypeProject:
		return true
	default:
		return false
	}
}

// GradeLetter is one of the fixed letter-grade buckets.
type GradeLetter string

const (
	GradeAPlus GradeLetter = "A+"
	GradeA     GradeLetter = "A"
	GradeBPlus GradeLetter = "B+"
	GradeB     GradeLetter = "B"
	GradeCPlus GradeLetter = "C+"
	GradeC     GradeLetter = "C"
	GradeD     GradeLetter = "D"
	GradeE     GradeLetter = "E"
)

// GradeLetters lists every bucket in display order. Distribution maps are
// initialised over this set so empty buckets still appear with zero counts.
var GradeLetters = []GradeLetter{GradeAPlus, GradeA, GradeBPlus, GradeB, GradeCPlus, GradeC, GradeD, GradeE}

// Valid returns true when the letter is a supported bucket.
func (g GradeLetter) Valid() bool {
	for _, letter := range GradeLetters {
		if g == letter {
			return true
		}
	}
	return false
}

// SkillRating is the fixed rating scale for skills and behavior dimensions.
type SkillRating string

const (
	RatingExcellent        SkillRating = "excellent"
	RatingGood             SkillRating = "good"
	RatingSatisfactory     SkillRating = "satisfactory"
	RatingNeedsImprovement SkillRating = "needs_improvement"
)

// Valid returns true when the rating is a supported value.
func (r SkillRating) Valid() bool {
	switch r {
	case RatingExcellent, RatingGood, RatingSatisfactory, RatingNeedsImprovement:
		return true
	default:
		return false
	}
}

// SkillAssessment captures one skill rating within an evaluation.
type SkillAssessment struct {
	SkillName string      `json:"skill_name" validate:"required"`
	Category  string      `json:"category"`
	Rating    SkillRating `json:"rating" validate:"required"`
	Score     *float64    `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	Remarks   string      `json:"remarks,omitempty"`
}

// SkillList is the ordered skill collection stored as a JSONB column.
type SkillList []SkillAssessment

// Value implements driver.Valuer.
func (s SkillList) Value() (driver.Value, error) {
	if s == nil {
		s = SkillList{}
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SkillList) Scan(src interface{}) error {
	return scanJSON(src, s, "skills")
}

// BehaviorRatings covers the fixed behavioral dimensions of an evaluation.
type BehaviorRatings struct {
	Discipline    SkillRating `json:"discipline,omitempty" validate:"omitempty"`
	Participation SkillRating `json:"participation,omitempty" validate:"omitempty"`
	Teamwork      SkillRating `json:"teamwork,omitempty" validate:"omitempty"`
	Punctuality   SkillRating `json:"punctuality,omitempty" validate:"omitempty"`
	Respect       SkillRating `json:"respect,omitempty" validate:"omitempty"`
}

// Value implements driver.Valuer.
func (b BehaviorRatings) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner.
func (b *BehaviorRatings) Scan(src interface{}) error {
	return scanJSON(src, b, "behavior")
}

func scanJSON(src, dest interface{}, column string) error {
	switch raw := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(raw, dest)
	case string:
		return json.Unmarshal([]byte(raw), dest)
	default:
		return fmt.Errorf("unsupported %s column type %T", column, src)
	}
}

// AttendanceSummary is the derived attendance sub-object of an evaluation.
// Percentage is never independently authored; it is recomputed whenever the
// day counts change.
type AttendanceSummary struct {
	TotalDays   *int     `db:"total_days" json:"total_days,omitempty"`
	PresentDays *int     `db:"present_days" json:"present_days,omitempty"`
	Percentage  *float64 `db:"percentage" json:"percentage,omitempty"`
}

// Evaluation is one academic assessment of one student in one class for a
// subject/term/year. Draft records are freely mutable; finalized records are
// immutable and excluded from further lifecycle transitions.
type Evaluation struct {
	ID                 string            `db:"id" json:"id"`
	SchoolID           string            `db:"school_id" json:"school_id"`
	StudentID          string            `db:"student_id" json:"student_id"`
	ClassID            string            `db:"class_id" json:"class_id"`
	Subject            string            `db:"subject" json:"subject"`
	Term               string            `db:"term" json:"term"`
	AcademicYear       int               `db:"academic_year" json:"academic_year"`
	EvaluationType     EvaluationType    `db:"evaluation_type" json:"evaluation_type"`
	EvaluationDate     time.Time         `db:"evaluation_date" json:"evaluation_date"`
	EvaluatedBy        *string           `db:"evaluated_by" json:"evaluated_by,omitempty"`
	Skills             SkillList         `db:"skills" json:"skills"`
	Behavior           BehaviorRatings   `db:"behavior" json:"behavior"`
	OverallGrade       *GradeLetter      `db:"overall_grade" json:"overall_grade,omitempty"`
	OverallRemarks     *string           `db:"overall_remarks" json:"overall_remarks,omitempty"`
	Strengths          pq.StringArray    `db:"strengths" json:"strengths"`
	AreasOfImprovement pq.StringArray    `db:"areas_of_improvement" json:"areas_of_improvement"`
	Attendance         AttendanceSummary `db:"attendance" json:"attendance"`
	IsFinalized        bool              `db:"is_finalized" json:"is_finalized"`
	FinalizedAt        *time.Time        `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// EvaluationDetail extends an evaluation with display metadata.
type EvaluationDetail struct {
	Evaluation
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
}

// EvaluationFilter scopes list queries. SchoolID is supplied separately and
// is always mandatory.
type EvaluationFilter struct {
	StudentID    string
	ClassID      string
	Subject      string
	Term         string
	AcademicYear int
	Finalized    *bool
	Page         int
	Limit        int
}

// GroupCount is a generic grouped-count row.
type GroupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// EvaluationStats summarises evaluation volume for a tenant.
type EvaluationStats struct {
	Total     int            `json:"total"`
	Finalized int            `json:"finalized"`
	Draft     int            `json:"draft"`
	ByTerm    map[string]int `json:"by_term"`
	BySubject map[string]int `json:"by_subject"`
	ByClass   map[string]int `json:"by_class"`
}

// ClassPerformance aggregates finalized evaluations for one class.
// Evaluations lacking an overall grade count toward TotalStudents but fall
// into no distribution bucket, so bucket sums may be below TotalStudents.
type ClassPerformance struct {
	TotalStudents     int                 `json:"total_students"`
	GradeDistribution map[GradeLetter]int `json:"grade_distribution"`
	Evaluations       []EvaluationDetail  `json:"evaluations"`
}

// ReportCardStudent is the student header of a report card.
type ReportCardStudent struct {
	ID       string  `db:"id" json:"id"`
	FullName string  `db:"full_name" json:"full_name"`
	Gender   *string `db:"gender" json:"gender,omitempty"`
}

// ReportCard combines a student's finalized evaluations for a year/term.
type ReportCard struct {
	Student       ReportCardStudent  `json:"student"`
	Evaluations   []EvaluationDetail `json:"evaluations"`
	AcademicYear  int                `json:"academic_year"`
	Term          string             `json:"term,omitempty"`
	TotalSubjects int                `json:"total_subjects"`
}
