package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
)

type attendanceReader interface {
	List(ctx context.Context, schoolID string, filter models.AttendanceFilter) ([]models.AttendanceEntryDetail, error)
}

// AttendanceReportService folds raw attendance entries into status counts
// and an overall percentage for the filtered scope.
type AttendanceReportService struct {
	attendance attendanceReader
	cache      *CacheService
	metrics    *MetricsService
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewAttendanceReportService constructs AttendanceReportService.
func NewAttendanceReportService(attendance attendanceReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AttendanceReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceReportService{attendance: attendance, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// BuildReport returns the stats plus the raw matching entries. An empty scope
// yields zeroed stats, never an error.
func (s *AttendanceReportService) BuildReport(ctx context.Context, schoolID string, filter models.AttendanceFilter) (*models.AttendanceReport, error) {
	key := attendanceCacheKey(schoolID, filter)
	if s.cache != nil {
		var cached models.AttendanceReport
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	start := time.Now()
	entries, err := s.attendance.List(ctx, schoolID, filter)
	if err != nil {
		return nil, fmt.Errorf("build attendance report: %w", err)
	}
	if entries == nil {
		entries = []models.AttendanceEntryDetail{}
	}

	stats := models.AttendanceStats{TotalRecords: len(entries)}
	for _, entry := range entries {
		switch entry.Status {
		case models.AttendancePresent:
			stats.TotalPresent++
		case models.AttendanceAbsent:
			stats.TotalAbsent++
		case models.AttendanceLate:
			stats.TotalLate++
		}
	}
	// Zero records means zero percent, not an error.
	if stats.TotalRecords > 0 {
		stats.AttendancePercentage = round2(float64(stats.TotalPresent) / float64(stats.TotalRecords) * 100)
	}

	report := &models.AttendanceReport{Stats: stats, Records: entries}
	if s.metrics != nil {
		s.metrics.ObserveReportBuild("attendance", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("attendance report cache store failed", zap.Error(err))
		}
	}
	return report, nil
}

func attendanceCacheKey(schoolID string, filter models.AttendanceFilter) string {
	date := ""
	if filter.Date != nil {
		date = filter.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("reports:%s:attendance:%s:%s:%d:%d", schoolID, filter.ClassID, date, filter.Month, filter.Year)
}
