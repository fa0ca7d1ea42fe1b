package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edupulse/edupulse-api/internal/models"
)

// FinanceRepository reads invoice and expense records for reporting.
// Income means paid invoices only; cancelled expenses are excluded from
// every total, the dashboard included.
type FinanceRepository struct {
	db *sqlx.DB
}

// NewFinanceRepository constructs the repository.
func NewFinanceRepository(db *sqlx.DB) *FinanceRepository {
	return &FinanceRepository{db: db}
}

// MonthlyIncome sums paid invoice amounts grouped by settlement month.
// Grouping uses paid_at: income is recognised in the month cash arrived,
// not the month the invoice was issued.
func (r *FinanceRepository) MonthlyIncome(ctx context.Context, schoolID string, dateRange models.DateRange) ([]models.MonthTotal, error) {
	const query = `SELECT EXTRACT(MONTH FROM paid_at)::int AS month, COALESCE(SUM(amount), 0) AS total
        FROM invoices
        WHERE school_id = $1 AND status = $2 AND paid_at >= $3 AND paid_at < $4
        GROUP BY month ORDER BY month`
	var totals []models.MonthTotal
	if err := r.db.SelectContext(ctx, &totals, query, schoolID, models.InvoicePaid, dateRange.Start, dateRange.End); err != nil {
		return nil, fmt.Errorf("monthly income: %w", err)
	}
	return totals, nil
}

// MonthlyExpense sums non-cancelled expense amounts grouped by expense month.
func (r *FinanceRepository) MonthlyExpense(ctx context.Context, schoolID string, dateRange models.DateRange) ([]models.MonthTotal, error) {
	const query = `SELECT EXTRACT(MONTH FROM expense_date)::int AS month, COALESCE(SUM(amount), 0) AS total
        FROM expenses
        WHERE school_id = $1 AND status <> $2 AND expense_date >= $3 AND expense_date < $4
        GROUP BY month ORDER BY month`
	var totals []models.MonthTotal
	if err := r.db.SelectContext(ctx, &totals, query, schoolID, models.ExpenseCancelled, dateRange.Start, dateRange.End); err != nil {
		return nil, fmt.Errorf("monthly expense: %w", err)
	}
	return totals, nil
}

// SumIncome totals all paid invoices for the tenant.
func (r *FinanceRepository) SumIncome(ctx context.Context, schoolID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM invoices WHERE school_id = $1 AND status = $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, schoolID, models.InvoicePaid); err != nil {
		return 0, fmt.Errorf("sum income: %w", err)
	}
	return total, nil
}

// SumExpenses totals all non-cancelled expenses for the tenant.
func (r *FinanceRepository) SumExpenses(ctx context.Context, schoolID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE school_id = $1 AND status <> $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, schoolID, models.ExpenseCancelled); err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}
