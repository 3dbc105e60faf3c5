package store

import (
	"context"
	"fmt"
	"time"
)

// NoteColors are the sticky-note colours the web client renders.
var NoteColors = []string{"yellow", "blue", "green", "pink", "purple", "orange"}

// Note is a personal sticky note.
type Note struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNote stores a note for the user.
func (h *Handle) CreateNote(ctx context.Context, n Note) (*Note, error) {
	if n.Color == "" {
		n.Color = "yellow"
	}
	n.CreatedAt = nowFunc().UTC()
	ts := formatTime(n.CreatedAt)
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO notes (user_id, title, content, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Content, n.Color, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotes returns the user's notes, newest first.
func (h *Handle) ListNotes(ctx context.Context, userID int64) ([]Note, error) {
	rows, err := h.q.QueryContext(ctx,
		`SELECT id, user_id, title, content, color, created_at FROM notes WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Note{}
	for rows.Next() {
		var (
			n       Note
			created string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Color, &created); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
