package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edupulse/edupulse-api/internal/models"
)

type financeReader interface {
	MonthlyIncome(ctx context.Context, schoolID string, dateRange models.DateRange) ([]models.MonthTotal, error)
	MonthlyExpense(ctx context.Context, schoolID string, dateRange models.DateRange) ([]models.MonthTotal, error)
}

// FinanceReportService builds the monthly income/expense series. Income is
// recognised on settlement (paid_at); expenses on their expense date.
type FinanceReportService struct {
	finance  financeReader
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewFinanceReportService constructs FinanceReportService.
func NewFinanceReportService(finance financeReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *FinanceReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinanceReportService{
		finance:  finance,
		cache:    cache,
		metrics:  metrics,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BuildReport returns a fixed 12-month series with zero-filled months plus
// grand totals. A zero dateRange defaults to the current calendar year.
func (s *FinanceReportService) BuildReport(ctx context.Context, schoolID string, dateRange models.DateRange) (*models.FinancialReport, error) {
	if dateRange.Start.IsZero() || dateRange.End.IsZero() {
		year := s.now().Year()
		dateRange.Start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		dateRange.End = dateRange.Start.AddDate(1, 0, 0)
	}

	key := fmt.Sprintf("reports:%s:finance:%s:%s", schoolID,
		dateRange.Start.Format("2006-01-02"), dateRange.End.Format("2006-01-02"))
	if s.cache != nil {
		var cached models.FinancialReport
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	start := time.Now()
	var income, expense []models.MonthTotal
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		rows, err := s.finance.MonthlyIncome(groupCtx, schoolID, dateRange)
		if err != nil {
			return err
		}
		income = rows
		return nil
	})
	group.Go(func() error {
		rows, err := s.finance.MonthlyExpense(groupCtx, schoolID, dateRange)
		if err != nil {
			return err
		}
		expense = rows
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("build financial report: %w", err)
	}

	report := &models.FinancialReport{Summary: make([]models.MonthlyFinance, 12)}
	for i := range report.Summary {
		report.Summary[i].Month = i + 1
	}
	for _, row := range income {
		if row.Month < 1 || row.Month > 12 {
			continue
		}
		report.Summary[row.Month-1].Income = row.Total
		report.TotalIncome += row.Total
	}
	for _, row := range expense {
		if row.Month < 1 || row.Month > 12 {
			continue
		}
		report.Summary[row.Month-1].Expense = row.Total
		report.TotalExpense += row.Total
	}

	if s.metrics != nil {
		s.metrics.ObserveReportBuild("finance", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("financial report cache store failed", zap.Error(err))
		}
	}
	return report, nil
}
