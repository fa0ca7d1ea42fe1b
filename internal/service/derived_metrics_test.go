package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-api/internal/models"
	appErrors "github.com/edupulse/edupulse-api/pkg/errors"
)

func TestAttendancePercentage(t *testing.T) {
	cases := []struct {
		name    string
		present int
		total   int
		want    float64
	}{
		{"whole", 18, 20, 90},
		{"repeating decimal rounds", 1, 3, 33.33},
		{"full attendance", 20, 20, 100},
		{"zero present", 0, 20, 0},
		{"two thirds", 2, 3, 66.67},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AttendancePercentage(tc.present, tc.total)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAttendancePercentageUndefinedForNonPositiveTotal(t *testing.T) {
	for _, total := range []int{0, -1} {
		_, err := AttendancePercentage(5, total)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestGradeBucketPassesThroughWithoutInference(t *testing.T) {
	grade := models.GradeBPlus
	eval := &models.Evaluation{OverallGrade: &grade}
	got := GradeBucket(eval)
	require.NotNil(t, got)
	assert.Equal(t, models.GradeBPlus, *got)

	assert.Nil(t, GradeBucket(&models.Evaluation{}))
	assert.Nil(t, GradeBucket(nil))

	empty := models.GradeLetter("")
	assert.Nil(t, GradeBucket(&models.Evaluation{OverallGrade: &empty}))
}

func TestMonthIndex(t *testing.T) {
	assert.Equal(t, 1, MonthIndex(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 12, MonthIndex(time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC)))
}
