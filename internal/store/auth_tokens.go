package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IssueToken stores a new random access token for userID valid for ttl.
func (h *Handle) IssueToken(ctx context.Context, userID int64, ttl time.Duration) (string, time.Time, error) {
	token := uuid.NewString()
	now := nowFunc()
	expires := now.Add(ttl).UTC()
	_, err := h.q.ExecContext(ctx,
		`INSERT INTO auth_tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token, userID, formatTime(expires), formatTime(now),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("storing token: %w", err)
	}
	return token, expires, nil
}

// UserByToken resolves an unexpired token to its user. Unknown and expired
// tokens both yield ErrNotFound.
func (h *Handle) UserByToken(ctx context.Context, token string) (*User, time.Time, error) {
	var (
		userID  int64
		expires string
	)
	err := h.q.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM auth_tokens WHERE token = ? AND expires_at > ?`,
		token, formatTime(nowFunc()),
	).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	exp, err := parseTime(expires)
	if err != nil {
		return nil, time.Time{}, err
	}
	u, err := h.GetUser(ctx, userID)
	if err != nil {
		return nil, time.Time{}, err
	}
	return u, exp, nil
}

// RevokeToken deletes a token.
func (h *Handle) RevokeToken(ctx context.Context, token string) error {
	_, err := h.q.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token = ?`, token)
	return err
}

// PurgeExpiredTokens removes expired tokens and returns how many were deleted.
func (h *Handle) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := h.q.ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at <= ?`, formatTime(nowFunc()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
