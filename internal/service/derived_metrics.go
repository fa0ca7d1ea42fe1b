package service

import (
	"fmt"
	"math"
	"time"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

// round2 rounds to two decimal places, the precision used for every
// percentage the API returns.
func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// AttendancePercentage computes present/total*100 rounded to two decimals.
// The ratio is undefined for a non-positive total.
func AttendancePercentage(present, total int) (float64, error) {
	if total <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attendance percentage undefined for total days %d", total))
	}
	return round2(float64(present) / float64(total) * 100), nil
}

// GradeBucket returns the evaluation's overall grade, or nil when none was
// assigned. No inference happens here: ungraded evaluations stay out of
// distributions.
func GradeBucket(eval *models.Evaluation) *models.GradeLetter {
	if eval == nil || eval.OverallGrade == nil || *eval.OverallGrade == "" {
		return nil
	}
	return eval.OverallGrade
}

// MonthIndex returns the 1-based calendar month of t.
func MonthIndex(t time.Time) int {
	return int(t.Month())
}
