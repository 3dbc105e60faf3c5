package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/core"
)

// Conversation is one assistant dialogue owned by a user.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is a conversation with its message count and last activity.
type ConversationSummary struct {
	Conversation
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
	Preview      string    `json:"preview,omitempty"`
}

// Message is a persisted assistant-dialogue message.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversation_id"`
	Role           string        `json:"role"`
	Content        string        `json:"content"`
	Actions        []core.Action `json:"actions_taken,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// GetOrCreateConversation returns conversation id owned by userID, or creates a
// new one when id is 0. A non-zero id that is missing or owned by another user
// yields ErrConversationNotFound.
func (db *DB) GetOrCreateConversation(ctx context.Context, id, userID int64) (*Conversation, error) {
	if id == 0 {
		now := nowFunc()
		res, err := db.ExecContext(ctx,
			`INSERT INTO ai_conversations (user_id, created_at) VALUES (?, ?)`, userID, formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		return &Conversation{ID: newID, UserID: userID, CreatedAt: now.UTC()}, nil
	}

	var (
		c       Conversation
		created string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM ai_conversations WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&c.ID, &c.UserID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %d: %w", id, ErrConversationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %d: %w", id, err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &c, nil
}

// AppendMessage persists a message. actions is stored as JSON, or NULL when empty.
func (db *DB) AppendMessage(ctx context.Context, conversationID int64, role, content string, actions []core.Action) (*Message, error) {
	var ledger sql.NullString
	if len(actions) > 0 {
		b, err := json.Marshal(actions)
		if err != nil {
			return nil, fmt.Errorf("encoding actions: %w", err)
		}
		ledger = sql.NullString{String: string(b), Valid: true}
	}
	now := nowFunc()
	res, err := db.ExecContext(ctx,
		`INSERT INTO ai_messages (conversation_id, role, content, actions_taken, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, role, content, ledger, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("appending %s message: %w", role, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Actions:        actions,
		CreatedAt:      now.UTC(),
	}, nil
}

// ConversationHistory returns every message of the conversation in dialogue order.
func (db *DB) ConversationHistory(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, actions_taken, created_at
		 FROM ai_messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var (
			m       Message
			ledger  sql.NullString
			created string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &ledger, &created); err != nil {
			return nil, err
		}
		if ledger.Valid && ledger.String != "" {
			if err := json.Unmarshal([]byte(ledger.String), &m.Actions); err != nil {
				return nil, fmt.Errorf("decoding actions of message %d: %w", m.ID, err)
			}
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListConversations returns the user's conversations, most recently active first.
func (db *DB) ListConversations(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.created_at,
		       COUNT(m.id),
		       COALESCE(MAX(m.created_at), c.created_at),
		       COALESCE((SELECT content FROM ai_messages f WHERE f.conversation_id = c.id AND f.role = 'user' ORDER BY f.created_at, f.id LIMIT 1), '')
		FROM ai_conversations c
		LEFT JOIN ai_messages m ON m.conversation_id = c.id
		WHERE c.user_id = ?
		GROUP BY c.id
		ORDER BY 5 DESC, c.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()
	var out []ConversationSummary
	for rows.Next() {
		var (
			s             ConversationSummary
			created, last string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &created, &s.MessageCount, &last, &s.Preview); err != nil {
			return nil, err
		}
		if s.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if s.LastActivity, err = parseTime(last); err != nil {
			return nil, err
		}
		s.Preview = preview(s.Preview, 80)
		out = append(out, s)
	}
	return out, rows.Err()
}

func preview(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "…"
}
