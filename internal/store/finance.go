package store

import (
	"context"
	"fmt"
)

// ExpenseCategories are the suggested expense categories.
var ExpenseCategories = []string{"household", "transport", "food", "entertainment", "other"}

// Expense is money spent on the household.
type Expense struct {
	ID          int64   `json:"id"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	CreatedBy   int64   `json:"created_by"`
	Status      string  `json:"status"`
}

// Income is money received by the household.
type Income struct {
	ID          int64   `json:"id"`
	Source      string  `json:"source"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Category    string  `json:"category,omitempty"`
}

// FinanceSummary totals money flows over a period.
type FinanceSummary struct {
	TotalPayroll  float64 `json:"total_payroll"`
	TotalExpenses float64 `json:"total_expenses"`
	TotalIncome   float64 `json:"total_income"`
	Net           float64 `json:"net"`
	Period        string  `json:"period"`
}

// CreateExpense inserts an expense in pending status.
func (h *Handle) CreateExpense(ctx context.Context, e Expense) (*Expense, error) {
	e.Status = "pending"
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO expenses (category, description, amount, date, created_by, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Category, e.Description, e.Amount, e.Date, e.CreatedBy, e.Status, formatTime(nowFunc()),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateIncome inserts an income record.
func (h *Handle) CreateIncome(ctx context.Context, in Income) (*Income, error) {
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO income (source, description, amount, date, category, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Source, nullString(in.Description), in.Amount, in.Date, nullString(in.Category), formatTime(nowFunc()),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting income: %w", err)
	}
	if in.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &in, nil
}

// SummarizeFinances totals payroll whose period lies within [from, to] and
// expenses and income dated within it. Net is income minus expenses minus payroll.
func (h *Handle) SummarizeFinances(ctx context.Context, from, to string) (*FinanceSummary, error) {
	s := &FinanceSummary{Period: from + " - " + to}
	if err := h.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(net_amount), 0) FROM payroll WHERE period_start >= ? AND period_end <= ?`, from, to,
	).Scan(&s.TotalPayroll); err != nil {
		return nil, fmt.Errorf("summing payroll: %w", err)
	}
	if err := h.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE date >= ? AND date <= ?`, from, to,
	).Scan(&s.TotalExpenses); err != nil {
		return nil, fmt.Errorf("summing expenses: %w", err)
	}
	if err := h.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM income WHERE date >= ? AND date <= ?`, from, to,
	).Scan(&s.TotalIncome); err != nil {
		return nil, fmt.Errorf("summing income: %w", err)
	}
	s.Net = s.TotalIncome - s.TotalExpenses - s.TotalPayroll
	return s, nil
}
