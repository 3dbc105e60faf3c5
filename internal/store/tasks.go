package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Task enumerations.
var (
	TaskPriorities = []string{"low", "medium", "high", "urgent"}
	TaskStatuses   = []string{"pending", "in_progress", "done"}
)

// Task is a unit of work assigned to a staff member.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  int64  `json:"assigned_to"`
	CreatedBy   int64  `json:"created_by,omitempty"`
	CreatedByAI bool   `json:"created_by_ai"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date,omitempty"` // YYYY-MM-DD
}

// TaskFilter narrows ListTasks. Zero values mean "any".
type TaskFilter struct {
	AssignedTo int64
	Status     string
}

// NewTask carries the fields for CreateTask.
type NewTask struct {
	AssignedTo  int64
	CreatedBy   int64
	CreatedByAI bool
	Title       string
	Description string
	Priority    string
	DueDate     string
}

const taskColumns = `id, title, COALESCE(description, ''), assigned_to, COALESCE(created_by, 0), created_by_ai, priority, status, COALESCE(due_date, '')`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy, &t.CreatedByAI, &t.Priority, &t.Status, &t.DueDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns tasks newest first.
func (h *Handle) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.AssignedTo != 0 {
		query += ` AND assigned_to = ?`
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := h.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTask retrieves a task by ID.
func (h *Handle) GetTask(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(h.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// CreateTask inserts a task and returns it. The assignee must exist.
func (h *Handle) CreateTask(ctx context.Context, nt NewTask) (*Task, error) {
	if _, err := h.GetUser(ctx, nt.AssignedTo); err != nil {
		return nil, fmt.Errorf("assignee %d: %w", nt.AssignedTo, err)
	}
	if nt.Priority == "" {
		nt.Priority = "medium"
	}
	now := formatTime(nowFunc())
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO tasks (assigned_to, created_by, created_by_ai, title, description, priority, status, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?)`,
		nt.AssignedTo, nullInt(nt.CreatedBy), nt.CreatedByAI, nt.Title, nullString(nt.Description), nt.Priority, nullString(nt.DueDate), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return h.GetTask(ctx, id)
}

// UpdateTaskStatus sets a task's status. When assignee is non-zero the task
// must be assigned to that user, otherwise ErrNotFound is returned.
func (h *Handle) UpdateTaskStatus(ctx context.Context, id int64, status string, assignee int64) error {
	query := `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`
	args := []any{status, formatTime(nowFunc()), id}
	if assignee != 0 {
		query += ` AND assigned_to = ?`
		args = append(args, assignee)
	}
	res, err := h.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}
