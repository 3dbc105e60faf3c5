package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

func getPayroll(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	list, err := h.ListPayroll(ctx, intArg(call.Args, "user_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"payroll": list, "count": len(list)}, nil
}

func createPayroll(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	start, err := dateArg(call.Args, "period_start", true)
	if err != nil {
		return nil, err
	}
	end, err := dateArg(call.Args, "period_end", true)
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("period_end %s is before period_start %s", end, start)
	}
	base := floatArg(call.Args, "base_salary")
	if base < 0 {
		return nil, fmt.Errorf("base_salary must not be negative")
	}
	p, err := h.CreatePayroll(ctx, store.Payroll{
		UserID:      intArg(call.Args, "user_id"),
		PeriodStart: start,
		PeriodEnd:   end,
		BaseSalary:  base,
		Bonuses:     floatArg(call.Args, "bonuses"),
		Deductions:  floatArg(call.Args, "deductions"),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("User not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": p.ID, "net_amount": p.NetAmount, "message": "Payroll record created"}, nil
}

func getFinanceSummary(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	start, err := dateArg(call.Args, "period_start", true)
	if err != nil {
		return nil, err
	}
	end, err := dateArg(call.Args, "period_end", true)
	if err != nil {
		return nil, err
	}
	s, err := h.SummarizeFinances(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total_payroll":  s.TotalPayroll,
		"total_expenses": s.TotalExpenses,
		"total_income":   s.TotalIncome,
		"net":            s.Net,
		"period":         s.Period,
	}, nil
}

// dateOrToday returns the named date argument, defaulting to the current date.
func dateOrToday(args map[string]any, name string) (string, error) {
	d, err := dateArg(args, name, false)
	if err != nil || d != "" {
		return d, err
	}
	return time.Now().Format(time.DateOnly), nil
}

func createExpense(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	amount := floatArg(call.Args, "amount")
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	date, err := dateOrToday(call.Args, "date")
	if err != nil {
		return nil, err
	}
	e, err := h.CreateExpense(ctx, store.Expense{
		Category:    stringArg(call.Args, "category"),
		Description: stringArg(call.Args, "description"),
		Amount:      amount,
		Date:        date,
		CreatedBy:   call.CallerID,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": e.ID, "amount": e.Amount, "date": e.Date, "message": "Expense recorded"}, nil
}

func createIncome(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	amount := floatArg(call.Args, "amount")
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	date, err := dateOrToday(call.Args, "date")
	if err != nil {
		return nil, err
	}
	in, err := h.CreateIncome(ctx, store.Income{
		Source:      stringArg(call.Args, "source"),
		Description: stringArg(call.Args, "description"),
		Category:    stringArg(call.Args, "category"),
		Amount:      amount,
		Date:        date,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": in.ID, "amount": in.Amount, "date": in.Date, "message": "Income recorded"}, nil
}
