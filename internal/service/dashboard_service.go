package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edupulse/edupulse-api/internal/models"
)

type rosterReader interface {
	CountActiveStudents(ctx context.Context, schoolID string) (int, error)
	CountTeachers(ctx context.Context, schoolID string) (int, error)
	CountClasses(ctx context.Context, schoolID string) (int, error)
	ClassStrength(ctx context.Context, schoolID string) ([]models.ClassStrengthRow, error)
}

type financeTotalsReader interface {
	SumIncome(ctx context.Context, schoolID string) (float64, error)
	SumExpenses(ctx context.Context, schoolID string) (float64, error)
}

// DashboardService assembles the tenant snapshot from independent roster and
// finance queries. The queries run in parallel; any failure fails the call.
type DashboardService struct {
	roster   rosterReader
	finance  financeTotalsReader
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(roster rosterReader, finance financeTotalsReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		roster:   roster,
		finance:  finance,
		cache:    cache,
		metrics:  metrics,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Summary returns the top-level counts and finance totals for the tenant.
func (s *DashboardService) Summary(ctx context.Context, schoolID string) (*models.DashboardSummary, error) {
	key := fmt.Sprintf("reports:%s:dashboard", schoolID)
	if s.cache != nil {
		var cached models.DashboardSummary
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	start := time.Now()
	summary := &models.DashboardSummary{}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		count, err := s.roster.CountActiveStudents(groupCtx, schoolID)
		summary.Students = count
		return err
	})
	group.Go(func() error {
		count, err := s.roster.CountTeachers(groupCtx, schoolID)
		summary.Teachers = count
		return err
	})
	group.Go(func() error {
		count, err := s.roster.CountClasses(groupCtx, schoolID)
		summary.Classes = count
		return err
	})
	group.Go(func() error {
		total, err := s.finance.SumIncome(groupCtx, schoolID)
		summary.Income = total
		return err
	})
	group.Go(func() error {
		total, err := s.finance.SumExpenses(groupCtx, schoolID)
		summary.Expenses = total
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}
	summary.NetProfit = summary.Income - summary.Expenses

	if s.metrics != nil {
		s.metrics.ObserveReportBuild("dashboard", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache store failed", zap.Error(err))
		}
	}
	return summary, nil
}

// ClassStrength returns the per-class roster breakdown with occupancy.
func (s *DashboardService) ClassStrength(ctx context.Context, schoolID string) ([]models.ClassStrengthRow, error) {
	rows, err := s.roster.ClassStrength(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("class strength: %w", err)
	}
	if rows == nil {
		rows = []models.ClassStrengthRow{}
	}
	for i := range rows {
		if rows[i].Capacity > 0 {
			rows[i].Occupancy = round2(float64(rows[i].Total) / float64(rows[i].Capacity) * 100)
		}
	}
	return rows, nil
}
