package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ScheduleStatuses are the legal shift states.
var ScheduleStatuses = []string{"scheduled", "completed", "cancelled"}

// Schedule is one shift of a staff member.
type Schedule struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Date       string `json:"date"`
	ShiftStart string `json:"shift_start"`
	ShiftEnd   string `json:"shift_end"`
	Location   string `json:"location"`
	Notes      string `json:"notes,omitempty"`
	Status     string `json:"status"`
}

// ScheduleFilter narrows ListSchedules. Dates are inclusive YYYY-MM-DD bounds.
type ScheduleFilter struct {
	UserID   int64
	DateFrom string
	DateTo   string
}

// ChangeRequest asks for a shift to be moved to another date.
type ChangeRequest struct {
	ID                 int64  `json:"id"`
	UserID             int64  `json:"user_id"`
	OriginalScheduleID int64  `json:"original_schedule_id"`
	RequestedDate      string `json:"requested_date"`
	Reason             string `json:"reason"`
	Status             string `json:"status"`
}

const scheduleColumns = `id, user_id, date, shift_start, shift_end, location, COALESCE(notes, ''), status`

func scanSchedule(row interface{ Scan(...any) error }) (*Schedule, error) {
	var s Schedule
	if err := row.Scan(&s.ID, &s.UserID, &s.Date, &s.ShiftStart, &s.ShiftEnd, &s.Location, &s.Notes, &s.Status); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns shifts ordered by date.
func (h *Handle) ListSchedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE 1=1`
	var args []any
	if f.UserID != 0 {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.DateFrom != "" {
		query += ` AND date >= ?`
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		query += ` AND date <= ?`
		args = append(args, f.DateTo)
	}
	query += ` ORDER BY date, shift_start, id`
	rows, err := h.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetSchedule retrieves a shift by ID.
func (h *Handle) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	s, err := scanSchedule(h.q.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// CreateSchedule inserts a shift for an existing user.
func (h *Handle) CreateSchedule(ctx context.Context, s Schedule) (*Schedule, error) {
	if _, err := h.GetUser(ctx, s.UserID); err != nil {
		return nil, fmt.Errorf("user %d: %w", s.UserID, err)
	}
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO schedules (user_id, date, shift_start, shift_end, location, notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'scheduled', ?)`,
		s.UserID, s.Date, s.ShiftStart, s.ShiftEnd, s.Location, nullString(s.Notes), formatTime(nowFunc()),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return h.GetSchedule(ctx, id)
}

// UpdateScheduleStatus sets a shift's status.
func (h *Handle) UpdateScheduleStatus(ctx context.Context, id int64, status string) error {
	res, err := h.q.ExecContext(ctx, `UPDATE schedules SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CreateChangeRequest records a request to move one of the user's own shifts.
// ErrNotFound is returned when the shift does not exist or belongs to someone else.
func (h *Handle) CreateChangeRequest(ctx context.Context, userID, scheduleID int64, requestedDate, reason string) (*ChangeRequest, error) {
	var cr *ChangeRequest
	err := h.InTx(ctx, func(tx *Handle) error {
		s, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if s.UserID != userID {
			return ErrNotFound
		}
		res, err := tx.q.ExecContext(ctx,
			`INSERT INTO schedule_change_requests (user_id, original_schedule_id, requested_date, reason, status, created_at)
			 VALUES (?, ?, ?, ?, 'pending', ?)`,
			userID, scheduleID, requestedDate, reason, formatTime(nowFunc()),
		)
		if err != nil {
			return fmt.Errorf("inserting change request: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		cr = &ChangeRequest{
			ID:                 id,
			UserID:             userID,
			OriginalScheduleID: scheduleID,
			RequestedDate:      requestedDate,
			Reason:             reason,
			Status:             "pending",
		}
		return nil
	})
	return cr, err
}
