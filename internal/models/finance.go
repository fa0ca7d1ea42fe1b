package models

import "time"

// InvoiceStatus enumerates billing states. Income is the sum of paid
// invoice amounts only.
type InvoiceStatus string

const (
	InvoicePaid    InvoiceStatus = "Paid"
	InvoicePending InvoiceStatus = "Pending"
	InvoiceOverdue InvoiceStatus = "Overdue"
)

// Invoice is a billing record, read-only to the reporting engine.
type Invoice struct {
	ID         string        `db:"id" json:"id"`
	SchoolID   string        `db:"school_id" json:"school_id"`
	StudentID  *string       `db:"student_id" json:"student_id,omitempty"`
	Amount     float64       `db:"amount" json:"amount"`
	Status     InvoiceStatus `db:"status" json:"status"`
	IssuedDate time.Time     `db:"issued_date" json:"issued_date"`
	DueDate    time.Time     `db:"due_date" json:"due_date"`
	PaidAt     *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
}

// ExpenseStatus enumerates expense workflow states. Cancelled expenses are
// excluded from every total.
type ExpenseStatus string

const (
	ExpensePending   ExpenseStatus = "pending"
	ExpenseApproved  ExpenseStatus = "approved"
	ExpensePaid      ExpenseStatus = "paid"
	ExpenseCancelled ExpenseStatus = "cancelled"
)

// Expense is an outgoing payment record, read-only to the reporting engine.
type Expense struct {
	ID          string        `db:"id" json:"id"`
	SchoolID    string        `db:"school_id" json:"school_id"`
	Amount      float64       `db:"amount" json:"amount"`
	Category    string        `db:"category" json:"category"`
	ExpenseDate time.Time     `db:"expense_date" json:"expense_date"`
	Status      ExpenseStatus `db:"status" json:"status"`
}

// MonthTotal is a grouped monthly sum row (month 1..12).
type MonthTotal struct {
	Month int     `db:"month"`
	Total float64 `db:"total"`
}

// MonthlyFinance is one element of the fixed 12-month series.
type MonthlyFinance struct {
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// FinancialReport is the monthly series plus grand totals. The totals always
// equal the sums over the series.
type FinancialReport struct {
	Summary      []MonthlyFinance `json:"summary"`
	TotalIncome  float64          `json:"total_income"`
	TotalExpense float64          `json:"total_expense"`
}

// DateRange bounds a financial report query (inclusive start, exclusive end).
type DateRange struct {
	Start time.Time
	End   time.Time
}
