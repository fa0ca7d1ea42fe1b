package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
)

type fakeRosterReader struct {
	students int
	teachers int
	classes  int
	strength []models.ClassStrengthRow
	err      error
}

func (f *fakeRosterReader) CountActiveStudents(context.Context, string) (int, error) {
	return f.students, f.err
}

func (f *fakeRosterReader) CountTeachers(context.Context, string) (int, error) {
	return f.teachers, f.err
}

func (f *fakeRosterReader) CountClasses(context.Context, string) (int, error) {
	return f.classes, f.err
}

func (f *fakeRosterReader) ClassStrength(context.Context, string) ([]models.ClassStrengthRow, error) {
	return f.strength, f.err
}

type fakeFinanceTotals struct {
	income   float64
	expenses float64
}

func (f *fakeFinanceTotals) SumIncome(context.Context, string) (float64, error) {
	return f.income, nil
}

func (f *fakeFinanceTotals) SumExpenses(context.Context, string) (float64, error) {
	return f.expenses, nil
}

func TestDashboardSummaryComposesAllSources(t *testing.T) {
	roster := &fakeRosterReader{students: 420, teachers: 32, classes: 14}
	finance := &fakeFinanceTotals{income: 120000, expenses: 85000}
	svc := NewDashboardService(roster, finance, nil, nil, time.Minute, zap.NewNop())

	summary, err := svc.Summary(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, 420, summary.Students)
	assert.Equal(t, 32, summary.Teachers)
	assert.Equal(t, 14, summary.Classes)
	assert.Equal(t, 120000.0, summary.Income)
	assert.Equal(t, 85000.0, summary.Expenses)
	assert.Equal(t, 35000.0, summary.NetProfit)
}

func TestDashboardSummaryFailsWhenAnySourceFails(t *testing.T) {
	roster := &fakeRosterReader{err: context.DeadlineExceeded}
	svc := NewDashboardService(roster, &fakeFinanceTotals{}, nil, nil, time.Minute, zap.NewNop())

	_, err := svc.Summary(context.Background(), "school-1")
	require.Error(t, err)
}

func TestDashboardClassStrengthOccupancy(t *testing.T) {
	roster := &fakeRosterReader{strength: []models.ClassStrengthRow{
		{ClassName: "10-A", Total: 30, Capacity: 40},
		{ClassName: "10-B", Total: 25, Capacity: 0},
	}}
	svc := NewDashboardService(roster, &fakeFinanceTotals{}, nil, nil, time.Minute, zap.NewNop())

	rows, err := svc.ClassStrength(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 75.0, rows[0].Occupancy)
	assert.Zero(t, rows[1].Occupancy)
}

func TestDashboardClassStrengthEmpty(t *testing.T) {
	svc := NewDashboardService(&fakeRosterReader{}, &fakeFinanceTotals{}, nil, nil, time.Minute, zap.NewNop())

	rows, err := svc.ClassStrength(context.Background(), "school-1")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
