package store

import (
	"context"
	"fmt"
)

// Payroll is one salary record for a pay period.
type Payroll struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	BaseSalary  float64 `json:"base_salary"`
	Bonuses     float64 `json:"bonuses"`
	Deductions  float64 `json:"deductions"`
	NetAmount   float64 `json:"net_amount"`
	Status      string  `json:"status"`
}

// ListPayroll returns payroll records, latest period first. userID 0 lists everyone.
func (h *Handle) ListPayroll(ctx context.Context, userID int64) ([]Payroll, error) {
	query := `SELECT id, user_id, period_start, period_end, base_salary, bonuses, deductions, net_amount, status FROM payroll`
	var args []any
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY period_end DESC, id DESC`
	rows, err := h.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Payroll{}
	for rows.Next() {
		var p Payroll
		if err := rows.Scan(&p.ID, &p.UserID, &p.PeriodStart, &p.PeriodEnd, &p.BaseSalary, &p.Bonuses, &p.Deductions, &p.NetAmount, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePayroll inserts a payroll record. NetAmount is computed as
// base salary plus bonuses minus deductions.
func (h *Handle) CreatePayroll(ctx context.Context, p Payroll) (*Payroll, error) {
	if _, err := h.GetUser(ctx, p.UserID); err != nil {
		return nil, fmt.Errorf("user %d: %w", p.UserID, err)
	}
	p.NetAmount = p.BaseSalary + p.Bonuses - p.Deductions
	p.Status = "pending"
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO payroll (user_id, period_start, period_end, base_salary, bonuses, deductions, net_amount, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.PeriodStart, p.PeriodEnd, p.BaseSalary, p.Bonuses, p.Deductions, p.NetAmount, p.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting payroll: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &p, nil
}
