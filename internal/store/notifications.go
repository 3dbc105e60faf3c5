package store

import (
	"context"
	"fmt"
	"time"
)

// NotificationTypes are the legal notification kinds.
var NotificationTypes = []string{"schedule", "task", "payment", "system"}

// Notification is an in-app message to a user.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNotification stores a notification for an existing user.
func (h *Handle) CreateNotification(ctx context.Context, n Notification) (*Notification, error) {
	if _, err := h.GetUser(ctx, n.UserID); err != nil {
		return nil, fmt.Errorf("user %d: %w", n.UserID, err)
	}
	if n.Type == "" {
		n.Type = "system"
	}
	n.CreatedAt = nowFunc().UTC()
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO notifications (user_id, title, message, type, is_read, channel, created_at) VALUES (?, ?, ?, ?, 0, 'in_app', ?)`,
		n.UserID, n.Title, n.Message, n.Type, formatTime(n.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (h *Handle) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	query := `SELECT id, user_id, title, message, type, is_read, created_at FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := h.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Notification{}
	for rows.Next() {
		var (
			n       Notification
			created string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &created); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
